package config

import "strings"

// Sanitize returns a copy of cfg that is safe to log: every secret keeps
// its length but only its first and last two characters.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	out := *cfg
	for _, s := range []*string{
		&out.Security.EncryptionKey,
		&out.Security.KeySalt,
		&out.Storage.Redis.Password,
	} {
		if *s != "" {
			*s = maskSecret(*s)
		}
	}
	return &out
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
