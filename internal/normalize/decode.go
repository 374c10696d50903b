package normalize

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Encoding names accepted in Layout.Encodings.
const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin-1"
)

// ErrDecode is returned when no encoding in the chain can decode the input.
var ErrDecode = errors.New("normalize: undecodable input")

func decoderFor(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case EncodingUTF8, "utf8":
		// Strict: invalid sequences fail instead of becoming U+FFFD.
		return encoding.UTF8Validator, nil
	case EncodingLatin1, "latin1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("normalize: unsupported encoding %q", name)
	}
}

// Decode tries each encoding of chain in order and returns the text produced
// by the first one that succeeds, along with that encoding's name.
func Decode(raw []byte, chain []string) (string, string, error) {
	if len(chain) == 0 {
		return "", "", fmt.Errorf("%w: empty encoding chain", ErrDecode)
	}

	var errs []error
	for _, name := range chain {
		dec, err := decoderFor(name)
		if err != nil {
			return "", "", err
		}
		out, _, err := transform.Bytes(dec, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		return strings.TrimPrefix(string(out), "\ufeff"), name, nil
	}

	return "", "", fmt.Errorf("%w: %w", ErrDecode, errors.Join(errs...))
}
