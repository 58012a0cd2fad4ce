package decrypt

import (
	"bytes"
	"crypto/cipher"
	"io"
	"testing"

	"golang.org/x/crypto/blowfish"

	"github.com/stretchr/testify/require"

	"github.com/halcyon-audio/spindle/internal/model"
)

type seekableBuffer struct {
	data []byte
	pos  int64
}

func newSeekableBuffer(data []byte) *seekableBuffer { return &seekableBuffer{data: data} }

func (b *seekableBuffer) Read(p []byte) (int, error) {
	if b.pos >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

func (b *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = b.pos + offset
	case io.SeekEnd:
		target = int64(len(b.data)) + offset
	}
	b.pos = target
	return target, nil
}

func TestDeriveKeyExactVector(t *testing.T) {
	var salt [16]byte
	copy(salt[:], "0000000000000000")

	key, err := deriveKey(model.TrackID(123456789), salt)
	require.NoError(t, err)

	want := [16]byte{58, 48, 48, 60, 100, 63, 56, 98, 50, 96, 53, 96, 48, 97, 51, 106}
	require.Equal(t, want, key)
}

func encryptStripedFixture(t *testing.T, key [16]byte, plainBlocks [][]byte) []byte {
	t.Helper()
	var out bytes.Buffer
	bc, err := blowfish.NewCipher(key[:])
	require.NoError(t, err)

	for i, block := range plainBlocks {
		full := len(block) == blockSize
		if i%stripeMod == 0 && full {
			enc := make([]byte, len(block))
			copy(enc, block)
			cipher.NewCBCEncrypter(bc, fixedIV[:]).CryptBlocks(enc, enc)
			out.Write(enc)
		} else {
			out.Write(block)
		}
	}
	return out.Bytes()
}

func TestStreamReadSequential(t *testing.T) {
	var salt [16]byte
	copy(salt[:], "0000000000000000")
	key, err := deriveKey(model.TrackID(123456789), salt)
	require.NoError(t, err)

	block0 := bytes.Repeat([]byte{0xAA}, blockSize)
	block1 := bytes.Repeat([]byte{0xBB}, blockSize)
	block2 := bytes.Repeat([]byte{0xCC}, blockSize)
	block3 := bytes.Repeat([]byte{0xDD}, 500) // short final block, never encrypted

	cipherText := encryptStripedFixture(t, key, [][]byte{block0, block1, block2, block3})
	want := append(append(append(append([]byte{}, block0...), block1...), block2...), block3...)

	src := newSeekableBuffer(cipherText)
	s, err := New(src, model.CipherBlowfishCbcStripe, model.TrackID(123456789), salt, int64(len(cipherText)))
	require.NoError(t, err)

	got := make([]byte, len(want))
	n, err := io.ReadFull(s, got)
	require.NoError(t, err)
	require.Equal(t, len(want), n)
	require.Equal(t, want, got)
}

func TestStreamSeekIdempotent(t *testing.T) {
	var salt [16]byte
	copy(salt[:], "0000000000000000")
	key, err := deriveKey(model.TrackID(123456789), salt)
	require.NoError(t, err)

	block0 := bytes.Repeat([]byte{0x11}, blockSize)
	block1 := bytes.Repeat([]byte{0x22}, blockSize)
	block2 := bytes.Repeat([]byte{0x33}, blockSize)

	cipherText := encryptStripedFixture(t, key, [][]byte{block0, block1, block2})

	src := newSeekableBuffer(cipherText)
	s, err := New(src, model.CipherBlowfishCbcStripe, model.TrackID(123456789), salt, int64(len(cipherText)))
	require.NoError(t, err)

	// Seek into the middle of block 2 directly, bypassing blocks 0 and 1.
	target := int64(2*blockSize + 10)
	pos, err := s.Seek(target, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, target, pos)

	got := make([]byte, 5)
	n, err := s.Read(got)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, block2[10:15], got)

	// Re-seeking to the same position must decrypt identically (idempotent).
	_, err = s.Seek(target, io.SeekStart)
	require.NoError(t, err)
	got2 := make([]byte, 5)
	_, err = s.Read(got2)
	require.NoError(t, err)
	require.Equal(t, got, got2)
}

func TestStreamSeekEndUnsupportedWhenSizeUnknown(t *testing.T) {
	var salt [16]byte
	copy(salt[:], "0000000000000000")
	src := newSeekableBuffer(nil)
	s, err := New(src, model.CipherBlowfishCbcStripe, model.TrackID(123456789), salt, -1)
	require.NoError(t, err)

	_, err = s.Seek(0, io.SeekEnd)
	require.Error(t, err)
}

func TestNewRejectsUnsupportedCipher(t *testing.T) {
	var salt [16]byte
	src := newSeekableBuffer(nil)
	_, err := New(src, model.Cipher(99), model.TrackID(1), salt, 0)
	require.Error(t, err)
}
