package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// KeyBuilder собирает детерминированный ключ кэша из именованных полей.
// Порядок добавления полей на ключ не влияет.
type KeyBuilder struct {
	namespace string
	fields    map[string]string
}

// NewKeyBuilder создаёт построитель ключа для пространства имён (simulate, sweep)
func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{
		namespace: namespace,
		fields:    make(map[string]string),
	}
}

// Int добавляет целое поле
func (b *KeyBuilder) Int(name string, v int64) *KeyBuilder {
	b.fields[name] = strconv.FormatInt(v, 10)
	return b
}

// Float добавляет вещественное поле в кратчайшей точной записи,
// 0.1 и 0.10000000000000001 дают один ключ, 0.1 и 0.1000001 разные
func (b *KeyBuilder) Float(name string, v float64) *KeyBuilder {
	b.fields[name] = strconv.FormatFloat(v, 'g', -1, 64)
	return b
}

// Bool добавляет флаг
func (b *KeyBuilder) Bool(name string, v bool) *KeyBuilder {
	b.fields[name] = strconv.FormatBool(v)
	return b
}

// String добавляет строковое поле
func (b *KeyBuilder) String(name, v string) *KeyBuilder {
	b.fields[name] = strconv.Quote(v)
	return b
}

// Canonical возвращает каноническое представление полей
func (b *KeyBuilder) Canonical() string {
	names := make([]string, 0, len(b.fields))
	for name := range b.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(b.fields[name])
		sb.WriteByte(';')
	}
	return sb.String()
}

// Build возвращает ключ вида "<namespace>:<hash>"
func (b *KeyBuilder) Build() string {
	return b.namespace + ":" + ShortHash([]byte(b.Canonical()))
}

// ShortHash первые 16 байт sha256 в hex (32 символа)
func ShortHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}
