package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const ivSize = 12
const tagSize = aes.BlockSize
const versionMagic = byte('R')

// KeySize is the required data key length. Keys are AES-256.
const KeySize = 32

// Cipher encrypts and decrypts field values. The additional
// authenticated data binds a ciphertext to its column so values cannot
// be swapped between fields undetected.
type Cipher interface {
	Encrypt(aad, plainText []byte) ([]byte, error)
	Decrypt(aad, packedText []byte) ([]byte, error)
}

type symmetric struct {
	aesgcm cipher.AEAD
}

// New returns an AES-256-GCM Cipher for the given data key.
func New(key []byte) (Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("data key must be %d bytes, got %d", KeySize, len(key))
	}

	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(c)
	if err != nil {
		return nil, err
	}

	return &symmetric{aesgcm: aesgcm}, nil
}

// GenerateKey returns a fresh random data key.
func GenerateKey() ([]byte, error) {
	return randomBytes(KeySize)
}

// ParseKey decodes a Base64-encoded data key, the form keys take in
// configuration and the environment.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("data key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// EncodeKey renders a data key in the Base64 form used by
// configuration and the environment.
func EncodeKey(key []byte) string {
	return base64.StdEncoding.Strict().EncodeToString(key)
}

func (s *symmetric) Encrypt(aad, plainText []byte) ([]byte, error) {
	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}

	cipherTextWithTag := s.aesgcm.Seal(nil, nonce, plainText, aad)

	return packCipherData(cipherTextWithTag, nonce), nil
}

func (s *symmetric) Decrypt(aad, packedText []byte) ([]byte, error) {
	if len(packedText) < 1+tagSize+ivSize {
		return nil, errors.New("ciphertext is too short")
	}
	if packedText[0] != versionMagic {
		return nil, fmt.Errorf("unknown ciphertext version %q", packedText[0])
	}

	cipherText, iv := unpackCipherData(packedText)

	return s.aesgcm.Open(nil, iv, cipherText, aad)
}

func randomNonce() ([]byte, error) {
	// Never use more than 2^32 random nonces with a given key because
	// of the risk of a repeat.
	return randomBytes(ivSize)
}

func randomBytes(size int) ([]byte, error) {
	value := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, value); err != nil {
		return nil, err
	}

	return value, nil
}

// Packed layout: version | tag | iv | ctext.
func packCipherData(cipherTextWithTag, iv []byte) []byte {
	iv = iv[:ivSize]

	tagStartIndex := len(cipherTextWithTag) - tagSize
	tag := cipherTextWithTag[tagStartIndex:]
	cipherText := cipherTextWithTag[:tagStartIndex]

	data := make([]byte, 1+tagSize+ivSize+len(cipherText))

	data[0] = versionMagic
	index := 1

	copy(data[index:], tag)
	index += tagSize

	copy(data[index:], iv)
	index += ivSize

	copy(data[index:], cipherText)

	return data
}

func unpackCipherData(packedText []byte) ([]byte, []byte) {
	index := 1

	nextIndex := index + tagSize
	tag := packedText[index:nextIndex]
	index = nextIndex

	nextIndex = index + ivSize
	iv := packedText[index:nextIndex]
	index = nextIndex

	// Open expects the tag appended to the ciphertext.
	cipherText := append(append([]byte{}, packedText[index:]...), tag...)

	return cipherText, iv
}
