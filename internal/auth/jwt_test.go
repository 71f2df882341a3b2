package auth

import "testing"

func TestUserTokenRoundTrip(t *testing.T) {
	token, err := GenerateUserToken("user-42")
	if err != nil {
		t.Fatalf("GenerateUserToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != "user-42" {
		t.Errorf("Expected user ID user-42, got %s", claims.UserID)
	}
	if claims.Role != "user" {
		t.Errorf("Expected role user, got %s", claims.Role)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	if _, err := ValidateToken("not-a-token"); err == nil {
		t.Error("Expected a malformed token to be rejected")
	}
	if _, err := ValidateToken(""); err == nil {
		t.Error("Expected an empty token to be rejected")
	}
}
