package stores

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	otpRecordVersionV1 = 1
)

// Channel is the delivery channel a challenge was issued on.
type Channel byte

const (
	ChannelEmail Channel = 'e'
	ChannelPhone Channel = 'p'
)

var (
	ErrOTPNotFound         = errors.New("otp challenge not found")
	ErrOTPExpired          = errors.New("otp challenge expired")
	ErrOTPSecretMismatch   = errors.New("otp secret mismatch")
	ErrOTPAttemptsExceeded = errors.New("otp attempts exceeded")
	ErrOTPRedisUnavailable = errors.New("otp redis unavailable")
)

// consumeOTPLua atomically performs GET→validate→DEL/SET on a challenge record.
// KEYS[1] = record key
// ARGV[1] = provided hash (32 bytes)
// ARGV[2] = expected channel (byte)
// ARGV[3] = max attempts (int string)
// ARGV[4] = current unix timestamp (int string)
//
// Returns:
//
//	record bytes on success
//	error string: "not_found", "expired", "channel_mismatch", "attempts_exceeded", "secret_mismatch"
var consumeOTPLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

local providedHash = ARGV[1]
local expectedChannel = tonumber(ARGV[2])
local maxAttempts = tonumber(ARGV[3])
local nowUnix = tonumber(ARGV[4])

-- version(1) channel(1) attempts(2 big-endian) expiresAt(8 big-endian) subjectLen(2) subject hash(32)
local version = string.byte(data, 1)
if version ~= 1 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local channel = string.byte(data, 2)

local attempts = string.byte(data, 3) * 256 + string.byte(data, 4)

local e0,e1,e2,e3,e4,e5,e6,e7 = string.byte(data, 5, 12)
local expiresAt = e0
for _, b in ipairs({e1,e2,e3,e4,e5,e6,e7}) do
  expiresAt = expiresAt * 256 + b
end

if nowUnix > expiresAt then
  redis.call('DEL', KEYS[1])
  return {err='expired'}
end

if channel ~= expectedChannel then
  redis.call('DEL', KEYS[1])
  return {err='channel_mismatch'}
end

local subjectLen = string.byte(data, 13) * 256 + string.byte(data, 14)
local hashOffset = 15 + subjectLen
local storedHash = string.sub(data, hashOffset, hashOffset + 31)

if storedHash ~= providedHash then
  attempts = attempts + 1
  if attempts >= maxAttempts then
    redis.call('DEL', KEYS[1])
    return {err='attempts_exceeded'}
  end
  local newData = string.sub(data, 1, 2) .. string.char(math.floor(attempts / 256), attempts % 256) .. string.sub(data, 5)
  local ttlMs = redis.call('PTTL', KEYS[1])
  if ttlMs <= 0 then
    redis.call('DEL', KEYS[1])
    return {err='expired'}
  end
  redis.call('SET', KEYS[1], newData, 'PX', ttlMs)
  return {err='secret_mismatch'}
end

redis.call('DEL', KEYS[1])
return data
`)

// OTPRecord is one outstanding challenge. Subject is the identity id the
// code was issued for, empty when the identifier has no account yet.
type OTPRecord struct {
	Channel    Channel
	Subject    string
	SecretHash [32]byte
	ExpiresAt  int64
	Attempts   uint16
}

// OTPStore persists challenges keyed by channel and identifier.
type OTPStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewOTPStore(redisClient redis.UniversalClient, prefix string) *OTPStore {
	if prefix == "" {
		prefix = "afotp"
	}
	return &OTPStore{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

// HashCode binds a code to its identifier so equal codes never share a hash.
func HashCode(identifier, code string) [32]byte {
	return sha256.Sum256([]byte(NormalizeIdentifier(identifier) + "\x00" + code))
}

// NormalizeIdentifier lowercases and trims an identifier for keying.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func (s *OTPStore) key(ch Channel, identifier string) string {
	sum := sha256.Sum256([]byte(NormalizeIdentifier(identifier)))
	return s.prefix + ":" + string(ch) + ":" + hex.EncodeToString(sum[:16])
}

// Save stores record, replacing any outstanding challenge for identifier.
func (s *OTPStore) Save(ctx context.Context, identifier string, record *OTPRecord, ttl time.Duration) error {
	encoded, err := encodeOTPRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(record.Channel, identifier), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}

	return nil
}

// Consume validates code against the outstanding challenge and deletes it
// on success. A wrong code increments the attempt count; reaching
// maxAttempts deletes the challenge.
func (s *OTPStore) Consume(
	ctx context.Context,
	ch Channel,
	identifier, code string,
	maxAttempts int,
) (*OTPRecord, error) {
	providedHash := HashCode(identifier, code)

	result, err := consumeOTPLua.Run(ctx, s.redis,
		[]string{s.key(ch, identifier)},
		string(providedHash[:]),
		int(ch),
		maxAttempts,
		s.now().Unix(),
	).Result()

	if err != nil {
		switch err.Error() {
		case "not_found":
			return nil, ErrOTPNotFound
		case "expired":
			return nil, ErrOTPExpired
		case "channel_mismatch", "secret_mismatch":
			return nil, ErrOTPSecretMismatch
		case "attempts_exceeded":
			return nil, ErrOTPAttemptsExceeded
		default:
			return nil, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrOTPRedisUnavailable)
	}

	record, decErr := decodeOTPRecord([]byte(data))
	if decErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, decErr)
	}

	// Lua string comparison is not constant-time.
	if subtle.ConstantTimeCompare(record.SecretHash[:], providedHash[:]) != 1 {
		return nil, ErrOTPSecretMismatch
	}

	return record, nil
}

func encodeOTPRecord(record *OTPRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(otpRecordVersionV1)
	buf.WriteByte(byte(record.Channel))

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.Subject) > 65535 {
		return nil, errors.New("otp record subject too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Subject))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Subject)
	buf.Write(record.SecretHash[:])

	return buf.Bytes(), nil
}

func decodeOTPRecord(data []byte) (*OTPRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != otpRecordVersionV1 {
		return nil, errors.New("invalid otp record version")
	}

	ch, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &OTPRecord{
		Channel: Channel(ch),
	}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var subjectLen uint16
	if err := binary.Read(reader, binary.BigEndian, &subjectLen); err != nil {
		return nil, err
	}

	subject := make([]byte, subjectLen)
	if _, err := io.ReadFull(reader, subject); err != nil {
		return nil, err
	}
	record.Subject = string(subject)

	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
