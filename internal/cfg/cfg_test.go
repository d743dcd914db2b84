package cfg

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func clearBotEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BINANCE_API_KEY", "BINANCE_API_SECRET", "BOT_USE_TESTNET",
		"BOT_SYMBOL", "BOT_MAX_POSITION_SIZE", "BOT_STRATEGY",
	} {
		t.Setenv(key, "")
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, c Config)
	}{
		{
			name: "missing file falls back to defaults and writes them",
			file: "",
			validate: func(t *testing.T, c Config) {
				if c.Symbol != "BTCUSDT" {
					t.Errorf("expected default symbol BTCUSDT, got %s", c.Symbol)
				}
				if c.LoopInterval != 0.1 {
					t.Errorf("expected default loop interval 0.1, got %f", c.LoopInterval)
				}
				if !c.UseTestnet {
					t.Error("expected testnet enabled by default")
				}
				if c.Strategy != "market_making" {
					t.Errorf("expected default strategy market_making, got %s", c.Strategy)
				}
				if _, err := os.Stat(c.Path()); err != nil {
					t.Errorf("expected defaults to be persisted at %s: %v", c.Path(), err)
				}
			},
		},
		{
			name: "file layer overrides defaults",
			file: `{"SYMBOL": "ETHUSDT", "LOOP_INTERVAL": 0.5, "MAX_OPEN_ORDERS": 25}`,
			validate: func(t *testing.T, c Config) {
				if c.Symbol != "ETHUSDT" {
					t.Errorf("expected symbol ETHUSDT, got %s", c.Symbol)
				}
				if c.LoopInterval != 0.5 {
					t.Errorf("expected loop interval 0.5, got %f", c.LoopInterval)
				}
				if c.MaxOpenOrders != 25 {
					t.Errorf("expected max open orders 25, got %d", c.MaxOpenOrders)
				}
				// Untouched keys keep their defaults.
				if c.MaxTradesPerDay != 500 {
					t.Errorf("expected default max trades 500, got %d", c.MaxTradesPerDay)
				}
			},
		},
		{
			name: "nested group replaces wholesale not field by field",
			file: `{"EMAIL_CONFIG": {"enabled": true, "sender_email": "bot@example.com"}}`,
			validate: func(t *testing.T, c Config) {
				if !c.Email.Enabled {
					t.Error("expected email enabled")
				}
				if c.Email.SenderEmail != "bot@example.com" {
					t.Errorf("expected sender bot@example.com, got %s", c.Email.SenderEmail)
				}
				// The default smtp server must NOT survive a group replacement.
				if c.Email.SMTPServer != "" {
					t.Errorf("expected smtp server cleared by shallow merge, got %s", c.Email.SMTPServer)
				}
				if c.Email.SMTPPort != 0 {
					t.Errorf("expected smtp port cleared by shallow merge, got %d", c.Email.SMTPPort)
				}
			},
		},
		{
			name: "environment overrides file",
			file: `{"SYMBOL": "ETHUSDT", "MAX_POSITION_SIZE": 0.5}`,
			envVars: map[string]string{
				"BOT_SYMBOL":            "SOLUSDT",
				"BOT_MAX_POSITION_SIZE": "0.25",
				"BINANCE_API_KEY":       "k",
				"BINANCE_API_SECRET":    "s",
			},
			validate: func(t *testing.T, c Config) {
				if c.Symbol != "SOLUSDT" {
					t.Errorf("expected env symbol SOLUSDT, got %s", c.Symbol)
				}
				if c.MaxPositionSize != 0.25 {
					t.Errorf("expected env position size 0.25, got %f", c.MaxPositionSize)
				}
				if c.APIKey != "k" || c.APISecret != "s" {
					t.Error("expected credentials from environment")
				}
			},
		},
		{
			name: "testnet toggle accepts only literal true",
			file: `{}`,
			envVars: map[string]string{
				"BOT_USE_TESTNET": "yes",
			},
			validate: func(t *testing.T, c Config) {
				if c.UseTestnet {
					t.Error("expected testnet disabled for non-true value")
				}
			},
		},
		{
			name: "testnet toggle is case insensitive",
			file: `{"USE_TESTNET": false}`,
			envVars: map[string]string{
				"BOT_USE_TESTNET": "TRUE",
			},
			validate: func(t *testing.T, c Config) {
				if !c.UseTestnet {
					t.Error("expected testnet enabled for TRUE")
				}
			},
		},
		{
			name: "unknown file keys are ignored",
			file: `{"NOT_A_KEY": 42, "SYMBOL": "ETHUSDT"}`,
			validate: func(t *testing.T, c Config) {
				if c.Symbol != "ETHUSDT" {
					t.Errorf("expected symbol ETHUSDT, got %s", c.Symbol)
				}
			},
		},
		{
			name:    "malformed file is fatal",
			file:    `{"SYMBOL": `,
			wantErr: true,
		},
		{
			name:    "known key with wrong type is fatal",
			file:    `{"MAX_OPEN_ORDERS": "ten"}`,
			wantErr: true,
		},
		{
			name:    "fractional value for integer key is fatal",
			file:    `{"MAX_OPEN_ORDERS": 10.5}`,
			wantErr: true,
		},
		{
			name: "unparseable numeric environment override is fatal",
			file: `{}`,
			envVars: map[string]string{
				"BOT_MAX_POSITION_SIZE": "lots",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearBotEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			path := filepath.Join(t.TempDir(), "config.json")
			if tt.file != "" {
				if err := os.WriteFile(path, []byte(tt.file), 0o644); err != nil {
					t.Fatalf("writing config fixture: %v", err)
				}
			}

			c, err := Resolve(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				if !errors.Is(err, ErrMalformed) {
					t.Errorf("expected ErrMalformed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, c)
			}
		})
	}
}

func TestResolveRoundTrip(t *testing.T) {
	clearBotEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")

	// First resolve writes the defaults file.
	if _, err := Resolve(path); err != nil {
		t.Fatalf("initial resolve: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading persisted defaults: %v", err)
	}

	// Resolving the persisted file and saving elsewhere must reproduce it
	// byte for byte.
	c, err := Resolve(path)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	other := filepath.Join(t.TempDir(), "copy.json")
	if err := c.Save(other); err != nil {
		t.Fatalf("saving copy: %v", err)
	}
	second, err := os.ReadFile(other)
	if err != nil {
		t.Fatalf("reading copy: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("persisted config did not survive a resolve/save round trip unchanged")
	}
}

func TestUpdate(t *testing.T) {
	clearBotEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	c, err := Resolve(path)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	t.Run("known keys produce a new persisted snapshot", func(t *testing.T) {
		next, err := c.Update(map[string]any{
			"SYMBOL":          "ETHUSDT",
			"MAX_OPEN_ORDERS": 3,
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if next.Symbol != "ETHUSDT" || next.MaxOpenOrders != 3 {
			t.Errorf("update not applied: %s %d", next.Symbol, next.MaxOpenOrders)
		}
		// The receiver stays untouched.
		if c.Symbol != "BTCUSDT" {
			t.Errorf("receiver mutated: %s", c.Symbol)
		}
		// The change reaches disk wholesale.
		reloaded, err := Resolve(path)
		if err != nil {
			t.Fatalf("reloading: %v", err)
		}
		if reloaded.Symbol != "ETHUSDT" || reloaded.MaxOpenOrders != 3 {
			t.Error("update was not persisted")
		}
	})

	t.Run("unknown keys are dropped without error", func(t *testing.T) {
		next, err := c.Update(map[string]any{"NOT_A_KEY": 1, "SYMBOL": "BNBUSDT"})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if next.Symbol != "BNBUSDT" {
			t.Errorf("known key not applied: %s", next.Symbol)
		}
	})

	t.Run("wrong value type fails with ErrMalformed", func(t *testing.T) {
		if _, err := c.Update(map[string]any{"MAX_OPEN_ORDERS": "ten"}); !errors.Is(err, ErrMalformed) {
			t.Errorf("expected ErrMalformed, got %v", err)
		}
	})

	t.Run("group values replace wholesale", func(t *testing.T) {
		next, err := c.Update(map[string]any{
			"TELEGRAM_CONFIG": map[string]any{"enabled": true, "token": "tok", "chat_id": "42"},
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if !next.Telegram.Enabled || next.Telegram.Token != "tok" || next.Telegram.ChatID != "42" {
			t.Errorf("telegram group not replaced: %+v", next.Telegram)
		}
	})
}
