package mongo

import "testing"

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://db.internal:27017")
	t.Setenv("MONGODB_DATABASE", "assessments")
	t.Setenv("MONGODB_MAX_POOL_SIZE", "25")

	config := NewConfigFromEnv()
	if config.URI != "mongodb://db.internal:27017" {
		t.Errorf("expected the URI from the environment, got %s", config.URI)
	}
	if config.Database != "assessments" {
		t.Errorf("expected the database from the environment, got %s", config.Database)
	}
	if config.MaxPoolSize != 25 {
		t.Errorf("expected pool size 25, got %d", config.MaxPoolSize)
	}
}

func TestNewConfigFromEnvIgnoresBadPoolSize(t *testing.T) {
	t.Setenv("MONGODB_MAX_POOL_SIZE", "not-a-number")

	config := NewConfigFromEnv()
	if config.MaxPoolSize != 0 {
		t.Errorf("expected an unset pool size, got %d", config.MaxPoolSize)
	}
}
