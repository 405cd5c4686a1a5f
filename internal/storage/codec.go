// Package storage provides durable storage backends for tokstash.
package storage

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/yndnr/tokstash-go/internal/core/domain"
	"github.com/yndnr/tokstash-go/pkg/crypto/adaptive"
)

// Value format bytes.
const (
	formatPlain  byte = 0x01
	formatSealed byte = 0x02
)

// Record field numbers.
const (
	fieldPath       protowire.Number = 1
	fieldBody       protowire.Number = 2
	fieldExpiration protowire.Number = 3
)

var errTruncated = errors.New("truncated value")

// marshalRecord encodes rec as protobuf wire bytes.
func marshalRecord(rec *domain.Record) []byte {
	b := make([]byte, 0, len(rec.Path)+len(rec.Body)+16)
	b = protowire.AppendTag(b, fieldPath, protowire.BytesType)
	b = protowire.AppendString(b, rec.Path)
	b = protowire.AppendTag(b, fieldBody, protowire.BytesType)
	b = protowire.AppendBytes(b, rec.Body)
	b = protowire.AppendTag(b, fieldExpiration, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(rec.Expiration))
	return b
}

// unmarshalRecord decodes protobuf wire bytes. Unknown fields are skipped.
func unmarshalRecord(b []byte) (*domain.Record, error) {
	rec := &domain.Record{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldPath && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			rec.Path = v
			b = b[n:]
		case num == fieldBody && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			rec.Body = append([]byte(nil), v...)
			b = b[n:]
		case num == fieldExpiration && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			rec.Expiration = protowire.DecodeZigZag(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return rec, nil
}

// valueCodec turns records into stored values and back.
type valueCodec struct {
	cipher adaptive.Cipher
}

func (c valueCodec) encode(key []byte, rec *domain.Record) ([]byte, error) {
	raw := marshalRecord(rec)
	if c.cipher == nil {
		return append([]byte{formatPlain}, raw...), nil
	}

	sealed, err := c.cipher.Encrypt(raw, key)
	if err != nil {
		return nil, fmt.Errorf("seal record: %w", err)
	}
	return append([]byte{formatSealed}, sealed...), nil
}

func (c valueCodec) decode(key, value []byte) (*domain.Record, error) {
	if len(value) == 0 {
		return nil, domain.ErrRecordCorrupted.WithCause(errTruncated)
	}

	raw := value[1:]
	switch value[0] {
	case formatPlain:
	case formatSealed:
		if c.cipher == nil {
			return nil, domain.ErrRecordCorrupted.WithDetails("sealed value but no encryption key configured")
		}
		opened, err := c.cipher.Decrypt(raw, key)
		if err != nil {
			return nil, domain.ErrRecordCorrupted.WithCause(err)
		}
		raw = opened
	default:
		return nil, domain.ErrRecordCorrupted.WithDetails(fmt.Sprintf("unknown value format 0x%02x", value[0]))
	}

	rec, err := unmarshalRecord(raw)
	if err != nil {
		return nil, domain.ErrRecordCorrupted.WithCause(err)
	}
	return rec, nil
}
