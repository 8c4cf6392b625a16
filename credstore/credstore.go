// Package credstore keeps the Wi-Fi credentials in a dedicated flash page.
//
// Page layout (little-endian):
//
//	offset   0: SSID, 64 bytes, NUL terminated
//	offset  64: password, 64 bytes, NUL terminated
//	offset 128: checksum, 2 bytes
//
// The checksum is the 16-bit sum of the SSID and password bytes. Stored
// credentials are valid only if the checksum matches and the SSID is not
// empty, which rejects erased or garbage pages.
package credstore

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Field sizes and offsets of the stored record.
const (
	FieldSize      = 64
	ssidOffset     = 0
	passwordOffset = ssidOffset + FieldSize
	checksumOffset = passwordOffset + FieldSize
	RecordSize     = checksumOffset + 2
)

var (
	ErrTooLong  = errors.New("credential too long")
	ErrPageSize = errors.New("flash page too small")
)

// Record is the stored credential triplet.
type Record struct {
	SSID     string
	Password string
	Checksum uint16
}

// Valid reports whether r holds real credentials.
func (r Record) Valid() bool {
	return r.SSID != "" && Checksum(r.SSID, r.Password) == r.Checksum
}

// Checksum returns the sum of all bytes of ssid and password. Each string is
// summed up to its first NUL byte, at most FieldSize bytes.
func Checksum(ssid, password string) uint16 {
	return sum(ssid) + sum(password)
}

func sum(s string) uint16 {
	var v uint16
	for i := 0; i < len(s) && i < FieldSize && s[i] != 0; i++ {
		v += uint16(s[i])
	}
	return v
}

// Flash is one erasable page of non-volatile memory.
type Flash interface {
	// ReadAt reads len(p) bytes at off.
	ReadAt(p []byte, off int64) (int, error)
	// ErasePage sets the whole page to the erased state.
	ErasePage() error
	// Program writes p at off. The target area must be erased.
	Program(off int64, p []byte) error
	// Size returns the page size.
	Size() int
}

// Store reads and writes the credential record.
type Store struct {
	flash Flash
}

// New returns a store on the given flash page.
func New(f Flash) (*Store, error) {
	if f.Size() < RecordSize {
		return nil, ErrPageSize
	}
	return &Store{flash: f}, nil
}

// Load reads the record from flash. It does not check validity, use
// Record.Valid for that.
func (s *Store) Load() (Record, error) {
	var buf [RecordSize]byte
	if _, err := s.flash.ReadAt(buf[:], 0); err != nil {
		return Record{}, fmt.Errorf("read credentials: %w", err)
	}
	return Record{
		SSID:     cstring(buf[ssidOffset:passwordOffset]),
		Password: cstring(buf[passwordOffset:checksumOffset]),
		Checksum: binary.LittleEndian.Uint16(buf[checksumOffset:]),
	}, nil
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Save erases the page and programs ssid, password and their checksum. The
// record is staged in memory and programmed in one pass, so a failure leaves
// either an erased page or a page whose checksum does not match; both load as
// invalid credentials.
func (s *Store) Save(ssid, password string) error {
	if len(ssid) >= FieldSize || len(password) >= FieldSize {
		return ErrTooLong
	}
	var buf [RecordSize]byte
	copy(buf[ssidOffset:], ssid)
	copy(buf[passwordOffset:], password)
	binary.LittleEndian.PutUint16(buf[checksumOffset:], Checksum(ssid, password))
	if err := s.flash.ErasePage(); err != nil {
		return fmt.Errorf("erase credentials page: %w", err)
	}
	if err := s.flash.Program(0, buf[:]); err != nil {
		return fmt.Errorf("program credentials: %w", err)
	}
	return nil
}
