package spool

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/coffersTech/rplog/internal/model"
)

// Frame flags.
const (
	flagSealed uint8 = 1 << iota
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create spool CBOR encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create spool CBOR decoder mode: %v", err))
	}
}

// codec turns record batches into frame payloads and back.
type codec struct {
	key     []byte
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newCodec(key []byte) (*codec, error) {
	if key != nil && len(key) != KeySize {
		return nil, errKeySize
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &codec{key: key, encoder: enc, decoder: dec}, nil
}

func (c *codec) encode(records []model.SubmissionRecord) (uint8, []byte, error) {
	raw, err := encMode.Marshal(records)
	if err != nil {
		return 0, nil, err
	}
	payload := c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)))
	if c.key == nil {
		return 0, payload, nil
	}
	sealed, err := seal(c.key, payload)
	if err != nil {
		return 0, nil, err
	}
	return flagSealed, sealed, nil
}

func (c *codec) decode(flags uint8, payload []byte) ([]model.SubmissionRecord, error) {
	if flags&flagSealed != 0 {
		if c.key == nil {
			return nil, ErrSealed
		}
		opened, err := open(c.key, payload)
		if err != nil {
			return nil, fmt.Errorf("open frame: %w", err)
		}
		payload = opened
	}
	raw, err := c.decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress frame: %w", err)
	}
	var records []model.SubmissionRecord
	if err := decMode.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return records, nil
}

func (c *codec) close() {
	c.encoder.Close()
	c.decoder.Close()
}
