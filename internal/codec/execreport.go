package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const ExecReportPayloadSize = 48

// EncodeExecReport serializes an execution report into a fixed-size payload.
func EncodeExecReport(dst []byte, r schema.ExecReport) []byte {
	if cap(dst) < ExecReportPayloadSize {
		dst = make([]byte, ExecReportPayloadSize)
	} else {
		dst = dst[:ExecReportPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], r.ClientOrderID)
	binary.LittleEndian.PutUint64(dst[8:16], r.OrderID)
	binary.LittleEndian.PutUint32(dst[16:20], r.SymbolID)
	binary.LittleEndian.PutUint16(dst[20:22], uint16(r.ExecType))
	binary.LittleEndian.PutUint16(dst[22:24], uint16(r.Status))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(r.CumQty))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(r.LastQty))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(r.LastPrice))

	return dst
}

// DecodeExecReport parses a fixed-size execution report payload.
func DecodeExecReport(src []byte) (schema.ExecReport, bool) {
	if len(src) < ExecReportPayloadSize {
		return schema.ExecReport{}, false
	}
	return schema.ExecReport{
		ClientOrderID: binary.LittleEndian.Uint64(src[0:8]),
		OrderID:       binary.LittleEndian.Uint64(src[8:16]),
		SymbolID:      binary.LittleEndian.Uint32(src[16:20]),
		ExecType:      schema.ExecType(binary.LittleEndian.Uint16(src[20:22])),
		Status:        schema.OrderStatus(binary.LittleEndian.Uint16(src[22:24])),
		CumQty:        schema.Quantity(int64(binary.LittleEndian.Uint64(src[24:32]))),
		LastQty:       schema.Quantity(int64(binary.LittleEndian.Uint64(src[32:40]))),
		LastPrice:     schema.Price(int64(binary.LittleEndian.Uint64(src[40:48]))),
	}, true
}
