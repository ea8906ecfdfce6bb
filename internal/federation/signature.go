package federation

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// SignatureHeader 信封签名头：对 origin 与正文的 blake2b-256 keyed MAC。
// Digest 只说明正文完整，发送方身份由签名证明。
const SignatureHeader = "X-Federation-Signature"

const signaturePrefix = "blake2b-256-mac="

var ErrBadSignature = errors.New("federation: bad signature")

// Sign 用与对端共享的密钥签名；key 需为 1~64 字节
func Sign(key []byte, origin string, body []byte) (string, error) {
	mac, err := blake2b.New256(key)
	if err != nil {
		return "", err
	}
	mac.Write([]byte(origin))
	mac.Write([]byte{'\n'})
	mac.Write(body)
	return signaturePrefix + base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

func VerifySignature(key []byte, origin string, body []byte, header string) error {
	if !strings.HasPrefix(header, signaturePrefix) {
		return ErrBadSignature
	}
	want, err := Sign(key, origin, body)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(header)) != 1 {
		return ErrBadSignature
	}
	return nil
}
