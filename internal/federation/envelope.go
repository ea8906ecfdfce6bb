// Package federation 节点间投递的信封格式。
//
// 信封用 CBOR Core Deterministic Encoding 编码，同一帖子总是得到相同字节，
// Digest 头是正文的 blake2b-256，接收方据此校验完整性并做幂等去重。
package federation

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/kmsv-2726/federated-socmed/internal/model"
)

const (
	// ContentType 投递请求的 Content-Type
	ContentType = "application/cbor"
	// DigestHeader 正文摘要头
	DigestHeader = "Digest"
	// OriginHeader 发送方节点
	OriginHeader = "X-Federation-Origin"

	TypePostCreate = "post.create"

	digestPrefix = "blake2b-256="
)

var ErrDigestMismatch = errors.New("federation: digest mismatch")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("federation: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("federation: CBOR decoder initialization failed: " + err.Error())
	}
}

// Envelope 一条帖子的投递载荷
type Envelope struct {
	Type        string `cbor:"type"`
	Origin      string `cbor:"origin"`
	FederatedID string `cbor:"federated_id"`
	AuthorID    string `cbor:"author_id"`
	Description string `cbor:"description"`
	Image       string `cbor:"image,omitempty"`
	Kind        string `cbor:"kind"`
	Channel     string `cbor:"channel,omitempty"`
	CreatedAt   int64  `cbor:"created_at"` // unix millis
}

// FromPost 由帖子构造信封
func FromPost(p *model.Post) Envelope {
	env := Envelope{
		Type:        TypePostCreate,
		Origin:      p.OriginServer,
		FederatedID: p.FederatedID,
		AuthorID:    p.AuthorID,
		Description: p.Description,
		Kind:        string(p.Kind),
		CreatedAt:   p.CreatedAt.UnixMilli(),
	}
	if p.Image != nil {
		env.Image = *p.Image
	}
	if p.ChannelName != nil {
		env.Channel = *p.ChannelName
	}
	return env
}

// Post 把信封还原成远端帖子的本地镜像（不含 ID 与联邦状态）
func (e Envelope) Post() *model.Post {
	p := &model.Post{
		FederatedID:  e.FederatedID,
		AuthorID:     e.AuthorID,
		Description:  e.Description,
		OriginServer: e.Origin,
		Kind:         model.PostKind(e.Kind),
		CreatedAt:    time.UnixMilli(e.CreatedAt),
	}
	if e.Image != "" {
		img := e.Image
		p.Image = &img
	}
	if e.Channel != "" {
		ch := e.Channel
		p.ChannelName = &ch
	}
	return p
}

// Marshal 编码信封，返回正文与 Digest 头
func Marshal(env Envelope) (body []byte, digest string, err error) {
	body, err = encMode.Marshal(env)
	if err != nil {
		return nil, "", fmt.Errorf("encode envelope: %w", err)
	}
	return body, Digest(body), nil
}

// Unmarshal 校验 digest 后解码
func Unmarshal(body []byte, digest string) (Envelope, error) {
	var env Envelope
	if err := VerifyDigest(body, digest); err != nil {
		return env, err
	}
	if err := decMode.Unmarshal(body, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// Digest blake2b-256 摘要头取值
func Digest(body []byte) string {
	sum := blake2b.Sum256(body)
	return digestPrefix + base64.StdEncoding.EncodeToString(sum[:])
}

func VerifyDigest(body []byte, header string) error {
	if !strings.HasPrefix(header, digestPrefix) {
		return ErrDigestMismatch
	}
	want := Digest(body)
	if subtle.ConstantTimeCompare([]byte(want), []byte(header)) != 1 {
		return ErrDigestMismatch
	}
	return nil
}
