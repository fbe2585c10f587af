//go:build !opus

package audio

import "errors"

// OpusAvailable reports whether the binary links libopus.
const OpusAvailable = false

// OpusEncoder is unavailable without the opus build tag.
type OpusEncoder struct{}

// NewOpusEncoder reports that opus support is not compiled in.
func NewOpusEncoder() (*OpusEncoder, error) {
	return nil, errors.New("build with '-tags opus' to enable ogg/opus uploads")
}

func (*OpusEncoder) MimeType() string { return MimeOggOpus }

func (*OpusEncoder) Encode([]int16, int, int) ([]byte, error) {
	return nil, errors.New("opus support not compiled in")
}
