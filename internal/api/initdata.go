package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Errors surfaced while resolving a user from Telegram WebApp launch data.
var (
	ErrNoInitData   = errors.New("no init data provided")
	ErrBadInitData  = errors.New("malformed init data")
	ErrBadSignature = errors.New("init data signature mismatch")
	ErrNoUserInInit = errors.New("init data carries no user")
)

// initDataUser is the user object embedded in Telegram WebApp launch data.
type initDataUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// verifyInitData checks the HMAC signature of a Telegram WebApp initData
// query string against the bot token, per the Telegram WebApp validation
// scheme: secret = HMAC_SHA256("WebAppData", botToken), expected hash =
// HMAC_SHA256(secret, dataCheckString).
func verifyInitData(initData, botToken string) error {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadInitData, err)
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return fmt.Errorf("%w: missing hash", ErrBadInitData)
	}

	pairs := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	secretMAC := hmac.New(sha256.New, []byte("WebAppData"))
	secretMAC.Write([]byte(botToken))
	secret := secretMAC.Sum(nil)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(dataCheckString))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(gotHash)) {
		return ErrBadSignature
	}
	return nil
}

// userIDFromInitData extracts the Telegram user id from the launch data's
// user field.
func userIDFromInitData(initData string) (int64, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadInitData, err)
	}

	rawUser := values.Get("user")
	if rawUser == "" {
		return 0, ErrNoUserInInit
	}

	var user initDataUser
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return 0, fmt.Errorf("%w: invalid user JSON: %v", ErrBadInitData, err)
	}
	if user.ID == 0 {
		return 0, ErrNoUserInInit
	}
	return user.ID, nil
}
