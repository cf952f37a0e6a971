package codec

import (
	"bytes"

	"github.com/annel0/sks-levelbuilder/internal/level"
	"github.com/klauspost/compress/zstd"
)

// zstdMagic первые байты кадра zstd
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Кодек zstd безопасен для параллельных EncodeAll/DecodeAll
var (
	packEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	packDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(1<<20), zstd.WithDecoderConcurrency(0))
)

// Pack кодирует сетку в бинарный LBL и сжимает его zstd для передачи по сети
func Pack(g *level.Grid) ([]byte, error) {
	raw, err := EncodeLBL(g)
	if err != nil {
		return nil, err
	}
	return packEncoder.EncodeAll(raw, make([]byte, 0, len(raw))), nil
}

// Unpack распаковывает результат Pack
func Unpack(data []byte) (*level.Grid, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return nil, decodeError("not a zstd frame")
	}
	raw, err := packDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, level.WrapError(level.KindDecode, "zstd", err)
	}
	return DecodeLBL(raw)
}
