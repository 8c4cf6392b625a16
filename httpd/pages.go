package httpd

import "strconv"

const (
	headerOK       = "HTTP/1.1 200 OK\r\n\r\n"
	headerNotFound = "HTTP/1.1 404 Not Found\r\n\r\n"
)

const formPage = "<html>" +
	"<head></head>" +
	"<body>" +
	"<h3>Connect to a Wireless Network:</h3>" +
	"<form action=\"/connect/\" method=\"post\">" +
	"Network: <input id=\"network\" name=\"network\" type=\"text\" />" +
	"<br>" +
	"Password: <input id=\"pw\" name=\"pw\" type=\"text\" />" +
	"<br>" +
	"<input type=\"submit\" value=\"Connect\" />" +
	"</form>" +
	"</body>" +
	"</html>"

const acceptPage = "<html>" +
	"<head></head>" +
	"<body>" +
	"<h3>Ok!</h3>" +
	"</body>" +
	"</html>"

func problemPage(p Problem) string {
	return "<html>" +
		"<head></head>" +
		"<body>" +
		"<h3>Problem " + strconv.Itoa(int(p)) + "</h3>" +
		"<a href=\"/\">Try again</a>" +
		"</body>" +
		"</html>"
}
