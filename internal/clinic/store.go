package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyClinicIDs = "clinic:ids"
	keyAutoSend  = "clinic:autosend"
)

// Store provides persistence for clinic configurations and chat bindings.
type Store struct {
	redis    *redis.Client
	now      func() time.Time
	timezone string
	minutes  int
}

// NewStore creates a new clinic config store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient, now: time.Now}
}

// WithDefaults sets the time zone and appointment length reported for
// clinics that have no stored config. Empty values keep the built-in
// defaults.
func (s *Store) WithDefaults(timezone string, appointmentMinutes int) *Store {
	s.timezone = strings.TrimSpace(timezone)
	s.minutes = appointmentMinutes
	return s
}

func (s *Store) defaults(clinicID string) *Config {
	cfg := DefaultConfig(clinicID)
	if s.timezone != "" {
		cfg.Timezone = s.timezone
	}
	if s.minutes > 0 {
		cfg.DefaultAppointmentMinutes = s.minutes
	}
	return cfg
}

func (s *Store) key(clinicID string) string {
	return fmt.Sprintf("clinic:config:%s", clinicID)
}

func chatKey(chatID string) string {
	return fmt.Sprintf("clinic:chat:%s", chatID)
}

func phoneChatKey(clinicID string) string {
	return fmt.Sprintf("clinic:phonechat:%s", clinicID)
}

// Get retrieves clinic config, returning default if not found.
func (s *Store) Get(ctx context.Context, clinicID string) (*Config, error) {
	data, err := s.redis.Get(ctx, s.key(clinicID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return s.defaults(clinicID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: get config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("clinic: unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Set saves clinic config and keeps the clinic and auto-send indexes current.
func (s *Store) Set(ctx context.Context, cfg *Config) error {
	if cfg == nil || strings.TrimSpace(cfg.ClinicID) == "" {
		return fmt.Errorf("clinic: set config: clinic id required")
	}
	cfg.normalize()
	cfg.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("clinic: marshal config: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.key(cfg.ClinicID), data, 0)
	pipe.SAdd(ctx, keyClinicIDs, cfg.ClinicID)
	if cfg.ReminderAutoSend {
		pipe.SAdd(ctx, keyAutoSend, cfg.ClinicID)
	} else {
		pipe.SRem(ctx, keyAutoSend, cfg.ClinicID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clinic: set config: %w", err)
	}
	return nil
}

// ClinicIDs lists every clinic with a stored config, sorted.
func (s *Store) ClinicIDs(ctx context.Context) ([]string, error) {
	return s.members(ctx, keyClinicIDs)
}

// AutoSendClinicIDs lists clinics with reminder auto-send enabled, sorted.
func (s *Store) AutoSendClinicIDs(ctx context.Context) ([]string, error) {
	return s.members(ctx, keyAutoSend)
}

func (s *Store) members(ctx context.Context, key string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("clinic: list %s: %w", key, err)
	}
	sort.Strings(ids)
	return ids, nil
}

// BindChat ties an operator chat to a clinic. A chat belongs to at most one
// clinic; rebinding moves it.
func (s *Store) BindChat(ctx context.Context, clinicID, chatID string) error {
	chatID = strings.TrimSpace(chatID)
	if clinicID == "" || chatID == "" {
		return fmt.Errorf("clinic: bind chat: clinic id and chat id required")
	}
	previous, _, err := s.ClinicForChat(ctx, chatID)
	if err != nil {
		return err
	}
	if previous != "" && previous != clinicID {
		if err := s.removeChat(ctx, previous, chatID); err != nil {
			return err
		}
	}

	cfg, err := s.Get(ctx, clinicID)
	if err != nil {
		return err
	}
	if !cfg.HasChat(chatID) {
		cfg.ChatIDs = append(cfg.ChatIDs, chatID)
	}
	if err := s.Set(ctx, cfg); err != nil {
		return err
	}
	if err := s.redis.Set(ctx, chatKey(chatID), clinicID, 0).Err(); err != nil {
		return fmt.Errorf("clinic: bind chat: %w", err)
	}
	return nil
}

// UnbindChat removes a chat binding. Unknown chats are a no-op.
func (s *Store) UnbindChat(ctx context.Context, chatID string) error {
	clinicID, ok, err := s.ClinicForChat(ctx, chatID)
	if err != nil || !ok {
		return err
	}
	if err := s.removeChat(ctx, clinicID, chatID); err != nil {
		return err
	}
	if err := s.redis.Del(ctx, chatKey(chatID)).Err(); err != nil {
		return fmt.Errorf("clinic: unbind chat: %w", err)
	}
	return nil
}

func (s *Store) removeChat(ctx context.Context, clinicID, chatID string) error {
	cfg, err := s.Get(ctx, clinicID)
	if err != nil {
		return err
	}
	kept := cfg.ChatIDs[:0]
	for _, id := range cfg.ChatIDs {
		if id != chatID {
			kept = append(kept, id)
		}
	}
	cfg.ChatIDs = kept
	return s.Set(ctx, cfg)
}

// ClinicForChat resolves the clinic a chat is bound to.
func (s *Store) ClinicForChat(ctx context.Context, chatID string) (string, bool, error) {
	clinicID, err := s.redis.Get(ctx, chatKey(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("clinic: chat lookup: %w", err)
	}
	return clinicID, true, nil
}

// BindPatientChat records the chat a patient with the given phone can be
// reached on.
func (s *Store) BindPatientChat(ctx context.Context, clinicID, phone, chatID string) error {
	phone = NormalizePhone(phone)
	if phone == "" || strings.TrimSpace(chatID) == "" {
		return fmt.Errorf("clinic: bind patient chat: phone and chat id required")
	}
	if err := s.redis.HSet(ctx, phoneChatKey(clinicID), phone, chatID).Err(); err != nil {
		return fmt.Errorf("clinic: bind patient chat: %w", err)
	}
	return nil
}

// ChatForPhone returns the chat bound to a patient phone number.
func (s *Store) ChatForPhone(ctx context.Context, clinicID, phone string) (string, bool, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return "", false, nil
	}
	chatID, err := s.redis.HGet(ctx, phoneChatKey(clinicID), phone).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("clinic: phone chat lookup: %w", err)
	}
	return chatID, true, nil
}

// NormalizePhone keeps digits only and maps local Turkish numbers onto the
// 90 country prefix.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		return "90" + digits[1:]
	case len(digits) == 10 && strings.HasPrefix(digits, "5"):
		return "90" + digits
	}
	return digits
}
