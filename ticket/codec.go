package ticket

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf8"

	"golang.org/x/exp/maps"

	"bilheteria-cli/model"
)

var pssOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}

// Canonicalize serializes fields as a compact JSON object with keys in
// ascending byte order and no HTML escaping. The same logical fields always
// produce the same bytes, whatever order the map was built in.
//
// Strings must be valid UTF-8: encoding/json would write invalid bytes as
// U+FFFD and the payload could not be rebuilt from the ticket file.
func Canonicalize(fields map[string]any) ([]byte, error) {
	keys := maps.Keys(fields)
	slices.Sort(keys)
	for _, key := range keys {
		if !utf8.ValidString(key) {
			return nil, fmt.Errorf("%w: field name %q", ErrInvalidText, key)
		}
		if s, ok := fields[key].(string); ok && !utf8.ValidString(s) {
			return nil, fmt.Errorf("%w: field %q", ErrInvalidText, key)
		}
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(&buf, fields[key]); err != nil {
			return nil, fmt.Errorf("ticket: encoding field %q: %w", key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}

// Sign produces an RSA-PSS signature over the SHA-256 digest of payload,
// using the maximum salt length. Signatures are randomized.
func Sign(private *rsa.PrivateKey, payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	signature, err := rsa.SignPSS(rand.Reader, private, crypto.SHA256, digest[:], pssOptions)
	if err != nil {
		return nil, fmt.Errorf("ticket: signing payload: %w", err)
	}
	return signature, nil
}

// VerifySignature reports whether signature is a valid RSA-PSS signature of
// payload under public. Every failure, including a nil key, yields false.
func VerifySignature(public *rsa.PublicKey, payload []byte, signature []byte) bool {
	if public == nil || len(signature) == 0 {
		return false
	}
	digest := sha256.Sum256(payload)
	return rsa.VerifyPSS(public, crypto.SHA256, digest[:], signature, pssOptions) == nil
}

// Payload returns the canonical bytes a ticket's signature covers.
func Payload(t model.Ticket) ([]byte, error) {
	return Canonicalize(t.Fields())
}

type wireTicket struct {
	ID        *string `json:"id"`
	Room      *int    `json:"room"`
	Film      *string `json:"film"`
	IssuedAt  *string `json:"issued_at"`
	Seat      *string `json:"seat"`
	Signature *string `json:"signature,omitempty"`
}

// Marshal renders t in the ticket file format: indented JSON with the
// signature as lowercase hex.
func Marshal(t model.Ticket) ([]byte, error) {
	w := wireTicket{
		ID:       &t.ID,
		Room:     &t.Room,
		Film:     &t.Film,
		IssuedAt: &t.IssuedAt,
		Seat:     t.Seat,
	}
	if len(t.Signature) > 0 {
		signature := hex.EncodeToString(t.Signature)
		w.Signature = &signature
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(w); err != nil {
		return nil, fmt.Errorf("ticket: encoding ticket: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses the ticket file format. Checks run in protocol order:
// structure, signature presence, signature encoding.
func Unmarshal(data []byte) (model.Ticket, error) {
	var w wireTicket
	if err := json.Unmarshal(data, &w); err != nil {
		return model.Ticket{}, fmt.Errorf("%w: %v", ErrMalformedTicket, err)
	}
	if w.ID == nil || w.Room == nil || w.Film == nil || w.IssuedAt == nil {
		return model.Ticket{}, ErrMalformedTicket
	}

	t := model.Ticket{
		ID:       *w.ID,
		Room:     *w.Room,
		Film:     *w.Film,
		IssuedAt: *w.IssuedAt,
		Seat:     w.Seat,
	}
	if err := checkStructure(t); err != nil {
		return model.Ticket{}, err
	}

	if w.Signature == nil || *w.Signature == "" {
		return model.Ticket{}, ErrMissingSignature
	}
	signature, err := hex.DecodeString(*w.Signature)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("%w: %v", ErrBadSignatureEncoding, err)
	}
	t.Signature = signature
	return t, nil
}

func checkStructure(t model.Ticket) error {
	if t.ID == "" || t.Film == "" || t.IssuedAt == "" {
		return ErrMalformedTicket
	}
	return nil
}
