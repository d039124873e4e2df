package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const OrderIntentPayloadSize = 32

// EncodeOrderIntent serializes an outbound order into a fixed-size payload.
func EncodeOrderIntent(dst []byte, o schema.OrderIntent) []byte {
	if cap(dst) < OrderIntentPayloadSize {
		dst = make([]byte, OrderIntentPayloadSize)
	} else {
		dst = dst[:OrderIntentPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], o.ClientOrderID)
	binary.LittleEndian.PutUint32(dst[8:12], o.SymbolID)
	binary.LittleEndian.PutUint16(dst[12:14], uint16(o.Side))
	binary.LittleEndian.PutUint16(dst[14:16], o.Flags)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(o.Price))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(o.Qty))

	return dst
}

// DecodeOrderIntent parses a fixed-size order payload.
func DecodeOrderIntent(src []byte) (schema.OrderIntent, bool) {
	if len(src) < OrderIntentPayloadSize {
		return schema.OrderIntent{}, false
	}
	return schema.OrderIntent{
		ClientOrderID: binary.LittleEndian.Uint64(src[0:8]),
		SymbolID:      binary.LittleEndian.Uint32(src[8:12]),
		Side:          schema.Side(binary.LittleEndian.Uint16(src[12:14])),
		Flags:         binary.LittleEndian.Uint16(src[14:16]),
		Price:         schema.Price(int64(binary.LittleEndian.Uint64(src[16:24]))),
		Qty:           schema.Quantity(int64(binary.LittleEndian.Uint64(src[24:32]))),
	}, true
}
