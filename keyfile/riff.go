package keyfile

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"picveil/permute"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/image/riff"
)

/*
RIFF 'PKEY'
  'head' chunk, 12 bytes:
    WORD  version (1)
    WORD  flags   (bit 0: data is sealed)
    DWORD width
    DWORD height
  'data' chunk:
    plain:  width*height DWORD destination indices
    sealed: 12 byte nonce + ChaCha20-Poly1305(plain data, aad = head chunk)
All integers are little endian.
*/

const (
	version    = 1
	flagSealed = 1 << 0
	headSize   = 12

	// DataKeySize is the size of the key sealing a key file.
	DataKeySize = chacha20poly1305.KeySize
)

var (
	ErrFormat = errors.New("keyfile: malformed key file")
	ErrSealed = errors.New("keyfile: key file is sealed")
	ErrOpen   = errors.New("keyfile: could not open sealed key file")
)

var (
	riffType = riff.FourCC{'R', 'I', 'F', 'F'}
	keyType  = riff.FourCC{'P', 'K', 'E', 'Y'}
	headType = riff.FourCC{'h', 'e', 'a', 'd'}
	dataType = riff.FourCC{'d', 'a', 't', 'a'}
)

// NewDataKey returns a random key for sealing key files.
func NewDataKey() ([]byte, error) {
	key := make([]byte, DataKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("could not generate data key: %w", err)
	}
	return key, nil
}

// Write stores key in w. The indices are sealed with dataKey unless it is
// nil.
func Write(w io.Writer, key *permute.Key, dataKey []byte) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	if uint64(key.Len()) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %dx%d grid too large", ErrFormat, key.Width, key.Height)
	}

	var flags uint16
	if dataKey != nil {
		flags |= flagSealed
	}
	head := binary.LittleEndian.AppendUint16(nil, version)
	head = binary.LittleEndian.AppendUint16(head, flags)
	head = binary.LittleEndian.AppendUint32(head, uint32(key.Width))
	head = binary.LittleEndian.AppendUint32(head, uint32(key.Height))

	data := make([]byte, 0, key.Len()*4)
	for _, v := range key.Order {
		data = binary.LittleEndian.AppendUint32(data, uint32(v))
	}

	if dataKey != nil {
		aead, err := chacha20poly1305.New(dataKey)
		if err != nil {
			return 0, fmt.Errorf("could not create cipher: %w", err)
		}
		nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(data)+aead.Overhead())
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return 0, fmt.Errorf("could not generate nonce: %w", err)
		}
		data = aead.Seal(nonce, nonce, data, head)
	}

	size := 4 + chunkSize(head) + chunkSize(data)
	if uint64(size) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d bytes exceed RIFF size limit", ErrFormat, size)
	}

	var count int64
	for _, b := range [][]byte{riffType[:], binary.LittleEndian.AppendUint32(nil, uint32(size)), keyType[:]} {
		n, err := writeBytes(w, b)
		count += n
		if err != nil {
			return count, fmt.Errorf("could not write RIFF header: %w", err)
		}
	}

	n, err := writeChunk(w, headType, head)
	count += n
	if err != nil {
		return count, fmt.Errorf("could not write head chunk: %w", err)
	}

	n, err = writeChunk(w, dataType, data)
	count += n
	if err != nil {
		return count, fmt.Errorf("could not write data chunk: %w", err)
	}

	return count, nil
}

// Read loads a key from r. dataKey is required if the file is sealed and
// ignored otherwise.
func Read(r io.Reader, dataKey []byte) (*permute.Key, error) {
	formType, rd, err := riff.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: could not open RIFF stream: %v", ErrFormat, err)
	} else if formType != keyType {
		return nil, fmt.Errorf("%w: unsupported RIFF content type: %s", ErrFormat, string(formType[:]))
	}

	var head, data []byte
	for {
		id, _, chunk, err := rd.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("%w: could not read chunk: %v", ErrFormat, err)
		}

		switch id {
		case headType:
			head, err = io.ReadAll(chunk)
		case dataType:
			data, err = io.ReadAll(chunk)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: could not read chunk %s: %v", ErrFormat, string(id[:]), err)
		}
	}

	if len(head) != headSize {
		return nil, fmt.Errorf("%w: missing or short head chunk", ErrFormat)
	}
	if ver := binary.LittleEndian.Uint16(head[0:]); ver != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, ver)
	}
	flags := binary.LittleEndian.Uint16(head[2:])
	width := int(binary.LittleEndian.Uint32(head[4:]))
	height := int(binary.LittleEndian.Uint32(head[8:]))

	if flags&flagSealed != 0 {
		if dataKey == nil {
			return nil, ErrSealed
		}
		aead, err := chacha20poly1305.New(dataKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOpen, err)
		}
		if len(data) < aead.NonceSize() {
			return nil, fmt.Errorf("%w: sealed data too short", ErrFormat)
		}
		data, err = aead.Open(nil, data[:aead.NonceSize()], data[aead.NonceSize():], head)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOpen, err)
		}
	}

	if width <= 0 || height <= 0 || len(data)%4 != 0 || uint64(len(data)/4) != uint64(width)*uint64(height) {
		return nil, fmt.Errorf("%w: %d bytes of data for %dx%d key", ErrFormat, len(data), width, height)
	}

	order := make([]int, width*height)
	for i := range order {
		order[i] = int(binary.LittleEndian.Uint32(data[i*4:]))
	}

	return permute.NewKey(width, height, order)
}

func chunkSize(b []byte) int {
	return 8 + len(b) + len(b)&1
}

func writeChunk(w io.Writer, id riff.FourCC, b []byte) (int64, error) {
	var count int64
	n, err := writeBytes(w, id[:])
	count += n
	if err != nil {
		return count, err
	}

	n, err = writeBytes(w, binary.LittleEndian.AppendUint32(nil, uint32(len(b))))
	count += n
	if err != nil {
		return count, err
	}

	n, err = writeBytes(w, b)
	count += n
	if err != nil {
		return count, err
	}

	if len(b)&1 != 0 {
		n, err = writeBytes(w, []byte{0})
		count += n
	}
	return count, err
}

func writeBytes(w io.Writer, b []byte) (int64, error) {
	n, err := w.Write(b)
	if err != nil {
		return int64(n), err
	} else if n != len(b) {
		return int64(n), fmt.Errorf("wrote only %d/%d bytes", n, len(b))
	}

	return int64(n), nil
}
