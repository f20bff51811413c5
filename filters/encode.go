package filters

import (
	"bytes"
	"compress/zlib"
)

// FlateEncode compresses data in the zlib format FlateDecode expects.
// Levels outside zlib's range fall back to the default level.
func FlateEncode(data []byte, level int) ([]byte, error) {
	if level < zlib.HuffmanOnly || level > zlib.BestCompression {
		level = zlib.DefaultCompression
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
