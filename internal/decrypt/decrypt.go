// Package decrypt implements the striped Blowfish-CBC cipher stream: a
// random-access reader over an encrypted HTTP body, decrypting 2048-byte
// blocks on demand the way the pack's unlock-music stream decoders
// (algo/qmc.Decoder, algo/ncm's key-box cipher) wrap an underlying
// io.Reader with positional decrypt state.
package decrypt

import (
	"crypto/cipher"
	"crypto/md5"
	"encoding/hex"
	"io"
	"strconv"

	"golang.org/x/crypto/blowfish"

	"github.com/halcyon-audio/spindle/internal/errs"
	"github.com/halcyon-audio/spindle/internal/model"
)

const (
	blockSize  = 2048
	stripeMod  = 3 // every 3rd block is encrypted
	keyLen     = 16
)

// fixedIV is the constant Blowfish-CBC IV used for every encrypted block.
var fixedIV = [8]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}

// Source is the underlying encrypted body: a sequential reader that also
// supports absolute seeks, matching the contract a buffered HTTP download
// reader exposes.
type Source interface {
	io.Reader
	io.Seeker
}

// Stream is a random-access decrypting reader over a Source.
type Stream struct {
	src       Source
	cipher    model.Cipher
	key       [keyLen]byte
	size      int64 // -1 if unknown
	pos       int64
	curIndex  int64 // -1 until a block is loaded
	curData   []byte
	curLoaded int // number of valid bytes in curData
	srcAt     int64 // absolute offset src's cursor is known to sit at, -1 if unknown
}

// New builds a Stream for trackID's media body. size is the total byte
// length if known, or -1. salt is the process-wide 16-byte salt used in
// key derivation.
func New(src Source, cipher model.Cipher, trackID model.TrackID, salt [keyLen]byte, size int64) (*Stream, error) {
	s := &Stream{
		src:      src,
		cipher:   cipher,
		size:     size,
		curIndex: -1,
		srcAt:    0,
	}
	switch cipher {
	case model.CipherNone:
		return s, nil
	case model.CipherBlowfishCbcStripe:
		key, err := deriveKey(trackID, salt)
		if err != nil {
			return nil, errs.New(errs.FailedPrecondition, "decrypt: new", err)
		}
		s.key = key
		return s, nil
	default:
		return nil, errs.New(errs.Unimplemented, "decrypt: new", errUnsupportedCipher)
	}
}

// deriveKey computes k[i] = h[i] XOR h[i+16] XOR salt[i], where h is the
// lowercase hex MD5 digest of the track id's decimal ASCII representation.
func deriveKey(trackID model.TrackID, salt [keyLen]byte) ([keyLen]byte, error) {
	var key [keyLen]byte
	decimal := strconv.FormatInt(int64(trackID), 10)
	sum := md5.Sum([]byte(decimal))
	h := hex.EncodeToString(sum[:]) // 32 lowercase hex characters
	if len(h) != 2*keyLen {
		return key, errKeyDerivation
	}
	for i := 0; i < keyLen; i++ {
		key[i] = h[i] ^ h[i+keyLen] ^ salt[i]
	}
	return key, nil
}

// Read implements io.Reader, copying decrypted bytes spanning as many
// blocks as needed to fill p.
func (s *Stream) Read(p []byte) (int, error) {
	if s.cipher == model.CipherNone {
		n, err := s.src.Read(p)
		s.pos += int64(n)
		return n, err
	}

	total := 0
	for total < len(p) {
		blockIndex := s.pos / blockSize
		blockOff := int(s.pos % blockSize)

		if blockIndex != s.curIndex {
			if err := s.loadBlock(blockIndex); err != nil {
				if total > 0 {
					return total, nil
				}
				return 0, err
			}
		}

		if blockOff >= s.curLoaded {
			// position is at or past EOF within this (short, final) block
			if total > 0 {
				return total, nil
			}
			return 0, io.EOF
		}

		n := copy(p[total:], s.curData[blockOff:s.curLoaded])
		total += n
		s.pos += int64(n)
	}
	return total, nil
}

// loadBlock reads block index from src into curData, decrypting it iff
// index%3==0 and the block read the full 2048 bytes.
func (s *Stream) loadBlock(index int64) error {
	want := int64(blockSize)
	startOff := index * blockSize

	if s.srcAt != startOff {
		if _, err := s.src.Seek(startOff, io.SeekStart); err != nil {
			return errs.New(errs.Unavailable, "decrypt: load block", err)
		}
		s.srcAt = startOff
	}

	buf := make([]byte, blockSize)
	n, err := io.ReadFull(s.src, buf)
	switch {
	case err == io.ErrUnexpectedEOF || err == io.EOF:
		// short final block: never decrypted regardless of stripe index
	case err != nil:
		return errs.New(errs.Unavailable, "decrypt: load block", err)
	}
	s.srcAt = startOff + int64(n)

	full := int64(n) == want
	if index%stripeMod == 0 && full {
		if err := decryptBlockCBC(buf[:n], s.key); err != nil {
			return errs.New(errs.FailedPrecondition, "decrypt: load block", err)
		}
	}

	s.curIndex = index
	s.curData = buf
	s.curLoaded = n
	return nil
}

func decryptBlockCBC(block []byte, key [keyLen]byte) error {
	bc, err := blowfish.NewCipher(key[:])
	if err != nil {
		return err
	}
	mode := cipher.NewCBCDecrypter(bc, fixedIV[:])
	mode.CryptBlocks(block, block)
	return nil
}

// Seek repositions the stream: target = block*2048 + offset, the
// underlying source is repositioned to the block boundary, the block is
// (re)loaded and decrypted if applicable, and the cursor is set to offset
// within it.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	case io.SeekEnd:
		if s.size < 0 {
			return 0, errs.New(errs.Unimplemented, "decrypt: seek", errSeekEndUnsupported)
		}
		target = s.size + offset
	default:
		return 0, errs.New(errs.InvalidArgument, "decrypt: seek", errBadWhence)
	}

	if target < 0 {
		return 0, errs.New(errs.InvalidArgument, "decrypt: seek", errBadWhence)
	}
	if s.size >= 0 && target > s.size {
		return 0, errs.New(errs.InvalidArgument, "decrypt: seek", io.ErrUnexpectedEOF)
	}

	if s.cipher == model.CipherNone {
		n, err := s.src.Seek(target, io.SeekStart)
		if err != nil {
			return 0, errs.New(errs.Unavailable, "decrypt: seek", err)
		}
		s.pos = n
		s.srcAt = n
		return n, nil
	}

	blockIndex := target / blockSize
	if blockIndex != s.curIndex {
		if err := s.loadBlock(blockIndex); err != nil {
			return 0, err
		}
	}
	s.pos = target
	return target, nil
}

// Len reports the stream's total byte length, if known, satisfying
// decode.MediaSource.
func (s *Stream) Len() (int64, bool) {
	return s.size, s.size >= 0
}

var (
	errUnsupportedCipher  = simpleErr("decrypt: cipher must be None or BlowfishCbcStripe")
	errKeyDerivation      = simpleErr("decrypt: md5 digest did not hex-encode to 32 characters")
	errSeekEndUnsupported = simpleErr("decrypt: seek from end requires a known size")
	errBadWhence          = simpleErr("decrypt: invalid seek target")
)

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
