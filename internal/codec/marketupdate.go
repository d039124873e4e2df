package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const MarketUpdatePayloadSize = 24

// EncodeMarketUpdate serializes a market update into a fixed-size payload.
func EncodeMarketUpdate(dst []byte, u schema.MarketUpdate) []byte {
	if cap(dst) < MarketUpdatePayloadSize {
		dst = make([]byte, MarketUpdatePayloadSize)
	} else {
		dst = dst[:MarketUpdatePayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], u.SymbolID)
	binary.LittleEndian.PutUint16(dst[4:6], uint16(u.Side))
	binary.LittleEndian.PutUint16(dst[6:8], u.Flags)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(u.Price))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(u.Qty))

	return dst
}

// DecodeMarketUpdate parses a fixed-size market update payload.
func DecodeMarketUpdate(src []byte) (schema.MarketUpdate, bool) {
	if len(src) < MarketUpdatePayloadSize {
		return schema.MarketUpdate{}, false
	}
	return schema.MarketUpdate{
		SymbolID: binary.LittleEndian.Uint32(src[0:4]),
		Side:     schema.Side(binary.LittleEndian.Uint16(src[4:6])),
		Flags:    binary.LittleEndian.Uint16(src[6:8]),
		Price:    schema.Price(int64(binary.LittleEndian.Uint64(src[8:16]))),
		Qty:      schema.Quantity(int64(binary.LittleEndian.Uint64(src[16:24]))),
	}, true
}
