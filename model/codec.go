package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"diskuto/crypto"
)

// ErrItemTooLarge is returned by ParseItem (and should be checked by callers
// before parsing) when encoded bytes exceed MaxItemSize.
var ErrItemTooLarge = fmt.Errorf("item exceeds max size of %d bytes", MaxItemSize)

// ErrMalformed is returned when ItemBytes cannot be parsed as a record.
var ErrMalformed = fmt.Errorf("malformed item bytes")

// Marshal encodes an Item to its wire bytes. Layout:
//
//	1 byte   kind tag
//	8 bytes  big-endian signed timestamp (unix ms)
//	...      kind-specific payload
func (i Item) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(i.Kind))
	writeI64(&buf, i.Timestamp.UnixUTCMillis)

	switch i.Kind {
	case KindPost:
		if i.Post == nil {
			return nil, fmt.Errorf("kind=post but Post field is nil")
		}
		if err := marshalPost(&buf, i.Post); err != nil {
			return nil, err
		}
	case KindComment:
		if i.Comment == nil {
			return nil, fmt.Errorf("kind=comment but Comment field is nil")
		}
		marshalComment(&buf, i.Comment)
	case KindProfile:
		if i.Profile == nil {
			return nil, fmt.Errorf("kind=profile but Profile field is nil")
		}
		marshalProfile(&buf, i.Profile)
	default:
		return nil, fmt.Errorf("unknown item kind %d", i.Kind)
	}

	out := buf.Bytes()
	if len(out) > MaxItemSize {
		return nil, ErrItemTooLarge
	}
	return out, nil
}

// ParseItem parses raw item bytes into an Item. Callers are expected to have
// already rejected oversized input (len(b) > MaxItemSize) before calling, per
// spec.md §4.2; ParseItem itself re-checks as a defensive boundary.
func ParseItem(b []byte) (Item, error) {
	if len(b) > MaxItemSize {
		return Item{}, ErrItemTooLarge
	}
	r := bytes.NewReader(b)

	kindByte, err := r.ReadByte()
	if err != nil {
		return Item{}, fmt.Errorf("reading kind tag: %w: %w", err, ErrMalformed)
	}
	kind := Kind(kindByte)

	ts, err := readI64(r)
	if err != nil {
		return Item{}, fmt.Errorf("reading timestamp: %w: %w", err, ErrMalformed)
	}

	item := Item{Kind: kind, Timestamp: Timestamp{UnixUTCMillis: ts}}

	switch kind {
	case KindPost:
		post, err := parsePost(r)
		if err != nil {
			return Item{}, err
		}
		item.Post = post
	case KindComment:
		comment, err := parseComment(r)
		if err != nil {
			return Item{}, err
		}
		item.Comment = comment
	case KindProfile:
		profile, err := parseProfile(r)
		if err != nil {
			return Item{}, err
		}
		item.Profile = profile
	default:
		return Item{}, fmt.Errorf("unrecognized kind tag %d: %w", kindByte, ErrMalformed)
	}

	return item, nil
}

func marshalPost(buf *bytes.Buffer, p *Post) error {
	writeU32(buf, uint32(len(p.Attachments)))
	for _, a := range p.Attachments {
		writeString(buf, a.Name)
		writeU64(buf, a.Size)
		buf.Write(a.Hash.Bytes())
	}
	return nil
}

func parsePost(r *bytes.Reader) (*Post, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("reading attachment count: %w: %w", err, ErrMalformed)
	}
	post := &Post{Attachments: make([]Attachment, 0, n)}
	for j := uint32(0); j < n; j++ {
		name, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("reading attachment name: %w: %w", err, ErrMalformed)
		}
		size, err := readU64(r)
		if err != nil {
			return nil, fmt.Errorf("reading attachment size: %w: %w", err, ErrMalformed)
		}
		hashBytes := make([]byte, crypto.SHA512Size)
		if _, err := io.ReadFull(r, hashBytes); err != nil {
			return nil, fmt.Errorf("reading attachment hash: %w: %w", err, ErrMalformed)
		}
		hash, err := crypto.SHA512FromBytes(hashBytes)
		if err != nil {
			return nil, fmt.Errorf("parsing attachment hash: %w: %w", err, ErrMalformed)
		}
		post.Attachments = append(post.Attachments, Attachment{Name: name, Size: size, Hash: hash})
	}
	return post, nil
}

func marshalComment(buf *bytes.Buffer, c *Comment) {
	buf.Write(c.ReplyTo.User.Bytes())
	buf.Write(c.ReplyTo.Signature.Bytes())
}

func parseComment(r *bytes.Reader) (*Comment, error) {
	userBytes := make([]byte, 32)
	if _, err := io.ReadFull(r, userBytes); err != nil {
		return nil, fmt.Errorf("reading reply_to user: %w: %w", err, ErrMalformed)
	}
	user, err := crypto.UserIDFromBytes(userBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing reply_to user: %w: %w", err, ErrMalformed)
	}
	sigBytes := make([]byte, 64)
	if _, err := io.ReadFull(r, sigBytes); err != nil {
		return nil, fmt.Errorf("reading reply_to signature: %w: %w", err, ErrMalformed)
	}
	sig, err := crypto.SignatureFromBytes(sigBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing reply_to signature: %w: %w", err, ErrMalformed)
	}
	return &Comment{ReplyTo: ItemRef{User: user, Signature: sig}}, nil
}

func marshalProfile(buf *bytes.Buffer, p *Profile) {
	writeString(buf, p.DisplayName)
	writeU32(buf, uint32(len(p.Follows)))
	for _, f := range p.Follows {
		buf.Write(f.User.Bytes())
		writeString(buf, f.DisplayName)
	}
}

func parseProfile(r *bytes.Reader) (*Profile, error) {
	name, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("reading display_name: %w: %w", err, ErrMalformed)
	}
	n, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("reading follow count: %w: %w", err, ErrMalformed)
	}
	profile := &Profile{DisplayName: name, Follows: make([]Follow, 0, n)}
	for j := uint32(0); j < n; j++ {
		userBytes := make([]byte, 32)
		if _, err := io.ReadFull(r, userBytes); err != nil {
			return nil, fmt.Errorf("reading follow user: %w: %w", err, ErrMalformed)
		}
		user, err := crypto.UserIDFromBytes(userBytes)
		if err != nil {
			return nil, fmt.Errorf("parsing follow user: %w: %w", err, ErrMalformed)
		}
		displayName, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("reading follow display_name: %w: %w", err, ErrMalformed)
		}
		profile.Follows = append(profile.Follows, Follow{User: user, DisplayName: displayName})
	}
	return profile, nil
}

// --- low level wire helpers ---

func writeI64(buf *bytes.Buffer, v int64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	buf.Write(tmp[:])
}

func readI64(r *bytes.Reader) (int64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(tmp[:])), nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func readU32(r *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(tmp[:]), nil
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func readU64(r *bytes.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(tmp[:]), nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
