package models

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"
)

const (
	ProfileTable   = "profiles"
	profileColumns = "id,username,fullname,role,location,avatar_url,created_at"
)

// GetProfile reads the profile row backing a token subject.
func (su *SupabaseRepo) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, NewValidationError("user_id", "invalid UUID")
	}

	raw, status, err := su.supabaseClient.From(ProfileTable).
		Select(profileColumns, "", false).
		Eq("id", userID).
		Execute()
	if err != nil {
		if status != 0 {
			return nil, &TransientIOError{
				Op:  "get profile",
				Err: fmt.Errorf("postgrest status=%d body=%s: %w", status, string(raw), err),
			}
		}
		return nil, &TransientIOError{Op: "get profile", Err: err}
	}

	// Supabase returns an array even for single results
	var profiles []Profile
	if err := json.Unmarshal(raw, &profiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile rows: %w", err)
	}
	if len(profiles) == 0 {
		return nil, ErrNotFound
	}
	if len(profiles) > 1 {
		return nil, fmt.Errorf("multiple profiles found for ID %s", userID)
	}

	p := &profiles[0]
	if p.Role == "" {
		p.Role = RoleUser
	}
	return p, nil
}

// DeleteUser removes the profile row and the auth account. The admin call
// needs the service-role key.
func (su *SupabaseRepo) DeleteUser(ctx context.Context, userID string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return NewValidationError("user_id", "invalid UUID")
	}

	if _, _, err := su.supabaseClient.From(ProfileTable).
		Delete("", "").
		Eq("id", userID).
		Execute(); err != nil {
		return &TransientIOError{Op: "delete profile", Err: err}
	}

	if su.serviceKey == "" {
		return nil
	}
	if err := su.supabaseClient.Auth.WithToken(su.serviceKey).AdminDeleteUser(types.AdminDeleteUserRequest{UserID: id}); err != nil {
		return &TransientIOError{Op: "delete auth user", Err: err}
	}
	return nil
}
