package controlplane

import (
	"log/slog"

	"github.com/klauspost/compress/zstd"
)

// auditCompressThreshold is the raw body size above which an audit
// record is zstd-compressed before being logged; small pushes (the
// common case — one shard range, one credential) are logged as-is since
// compression overhead would dwarf the payload.
const auditCompressThreshold = 4096

// auditor logs every accepted namespace push for traceability, compressing
// large shard-map/DNS-host snapshots so a flood of big pushes doesn't
// blow up log storage.
type auditor struct {
	log *slog.Logger

	encoder *zstd.Encoder
}

// newAuditor builds an auditor. The zstd encoder is built once and reused
// across pushes; EncodeAll is safe for concurrent use.
func newAuditor(log *slog.Logger) (*auditor, error) {
	if log == nil {
		log = slog.Default()
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	return &auditor{log: log, encoder: enc}, nil
}

// record logs namespace's accepted raw JSON body. Bodies at or under
// auditCompressThreshold are logged verbatim; larger ones are
// zstd-compressed first and logged as a base64-free byte count plus the
// compressed blob, since the raw text itself is too large to be useful
// in a log line.
func (a *auditor) record(namespace string, rawBody []byte) {
	if len(rawBody) <= auditCompressThreshold {
		a.log.Info("namespace push accepted",
			"namespace", namespace,
			"bytes", len(rawBody),
			"body", string(rawBody))
		return
	}

	compressed := a.encoder.EncodeAll(rawBody, make([]byte, 0, len(rawBody)/2))
	a.log.Info("namespace push accepted",
		"namespace", namespace,
		"raw_bytes", len(rawBody),
		"compressed_bytes", len(compressed),
		"compression_ratio", ratio(len(rawBody), len(compressed)),
		"body_zstd", compressed)
}

func ratio(raw, compressed int) float64 {
	if compressed == 0 {
		return 0
	}
	return float64(raw) / float64(compressed)
}

// decompress reverses record's compression, used by tests and by any
// offline audit-log reader that needs the original JSON back.
func decompress(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(compressed, nil)
}
