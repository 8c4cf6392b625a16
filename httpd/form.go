package httpd

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/schema"

	"github.com/embeddedgo/esp8266/credstore"
)

var (
	ErrNoField   = errors.New("field not found")
	ErrBadEscape = errors.New("bad percent escape")
)

// Problem is the number shown on the problem page when a connect request is
// rejected.
type Problem int

const (
	ProblemNetwork  Problem = 1 // network field missing or malformed
	ProblemPassword Problem = 2 // pw field missing or malformed
	ProblemStore    Problem = 3 // credentials could not be saved
)

func (p Problem) Error() string {
	return "problem " + strconv.Itoa(int(p))
}

// URLDecode decodes the form encoded value at the beginning of s: '+' becomes
// a space and %XY the byte with hex value XY. Decoding stops at '&', at any
// control character or after max output bytes. It returns the decoded value
// and the number of bytes of s consumed.
func URLDecode(s string, max int) (string, int, error) {
	var sb strings.Builder
	i := 0
	for i < len(s) && sb.Len() < max {
		c := s[i]
		switch {
		case c == '&' || c < ' ' || c == 0x7f:
			return sb.String(), i, nil
		case c == '+':
			sb.WriteByte(' ')
			i++
		case c == '%':
			if i+2 >= len(s) {
				return "", i, ErrBadEscape
			}
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if !ok1 || !ok2 {
				return "", i, ErrBadEscape
			}
			sb.WriteByte(hi<<4 | lo)
			i += 3
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), i, nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// GetPostParameter finds field in the form encoded body and returns its
// decoded value, at most max bytes long.
func GetPostParameter(body, field string, max int) (string, error) {
	key := field + "="
	for i := 0; i < len(body); {
		if strings.HasPrefix(body[i:], key) {
			v, _, err := URLDecode(body[i+len(key):], max)
			return v, err
		}
		k := strings.IndexByte(body[i:], '&')
		if k < 0 {
			break
		}
		i += k + 1
	}
	return "", ErrNoField
}

// ConnectForm is the body of the POST /connect/ request.
type ConnectForm struct {
	Network  string
	Password string
}

// connectFields is what the decoder fills in. An open network has an empty
// password, so pw cannot be required. It only has to be present, which a nil
// Password tells.
type connectFields struct {
	Network  string  `schema:"network,required"`
	Password *string `schema:"pw"`
}

var decoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// formFields lists the form keys in the order their problems are reported.
var formFields = []struct {
	key     string
	problem Problem
}{
	{"network", ProblemNetwork},
	{"pw", ProblemPassword},
}

// DecodeConnectForm extracts the network name and the password from body. The
// returned error is a Problem if a field is missing or malformed.
func DecodeConnectForm(body string) (ConnectForm, error) {
	values := url.Values{}
	failed := make(map[string]bool)
	for _, f := range formFields {
		v, err := GetPostParameter(body, f.key, credstore.FieldSize-1)
		switch {
		case err == nil:
			values.Set(f.key, v)
		case !errors.Is(err, ErrNoField):
			failed[f.key] = true
		}
	}
	var f connectFields
	if err := decoder.Decode(&f, values); err != nil {
		var me schema.MultiError
		if !errors.As(err, &me) {
			return ConnectForm{}, ProblemNetwork
		}
		for key, e := range me {
			var ee schema.EmptyFieldError
			if errors.As(e, &ee) {
				key = ee.Key
			}
			failed[key] = true
		}
	}
	if f.Password == nil {
		failed["pw"] = true
	}
	for _, ff := range formFields {
		if failed[ff.key] {
			return ConnectForm{}, ff.problem
		}
	}
	if len(failed) != 0 {
		return ConnectForm{}, ProblemNetwork
	}
	return ConnectForm{Network: f.Network, Password: *f.Password}, nil
}
