package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var currentTime = time.Date(2015, 7, 2, 10, 10, 10, 0, time.UTC)

func fixedClock() time.Time { return currentTime }

// decodeJWT verifies the header value and returns the decoded claims.
func decodeJWT(t *testing.T, header, key string) jwt.MapClaims {
	t.Helper()

	if !strings.HasPrefix(header, "JWT ") {
		t.Fatalf("expected JWT scheme, got %q", header)
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "JWT "), claims,
		func(token *jwt.Token) (any, error) {
			if token.Method != jwt.SigningMethodHS256 {
				t.Errorf("unexpected signing method %v", token.Method.Alg())
			}
			return []byte(key), nil
		},
		jwt.WithTimeFunc(fixedClock),
	)
	if err != nil {
		t.Fatalf("failed to decode token: %v", err)
	}
	return claims
}

func TestJWTAuth_Claims(t *testing.T) {
	tests := []struct {
		name string
		opts []JWTOption
		want jwt.MapClaims
	}{
		{
			name: "required only",
			opts: []JWTOption{WithExpiresIn(0)},
			want: jwt.MapClaims{
				"username": "alice",
				"iat":      float64(currentTime.Unix()),
			},
		},
		{
			name: "default expiry",
			want: jwt.MapClaims{
				"username": "alice",
				"iat":      float64(currentTime.Unix()),
				"exp":      float64(currentTime.Add(30 * time.Second).Unix()),
			},
		},
		{
			name: "all claims",
			opts: []JWTOption{
				WithFullName("αlícє whítє"),
				WithEmail("alice@example.com"),
				WithIssuer("http://example.com/oauth"),
				WithExpiresIn(60 * time.Second),
				WithTrackingContext(map[string]any{"foo": "bar"}),
			},
			want: jwt.MapClaims{
				"username":         "alice",
				"full_name":        "αlícє whítє",
				"email":            "alice@example.com",
				"iss":              "http://example.com/oauth",
				"iat":              float64(currentTime.Unix()),
				"exp":              float64(currentTime.Add(60 * time.Second).Unix()),
				"tracking_context": map[string]any{"foo": "bar"},
			},
		},
		{
			name: "empty optional values omitted",
			opts: []JWTOption{WithFullName(""), WithEmail(""), WithIssuer(""), WithExpiresIn(0)},
			want: jwt.MapClaims{
				"username": "alice",
				"iat":      float64(currentTime.Unix()),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]JWTOption{WithClock(fixedClock)}, tt.opts...)
			a, err := NewJWTAuth("alice", "edx", opts...)
			if err != nil {
				t.Fatalf("NewJWTAuth failed: %v", err)
			}

			req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
			if err := a.Attach(req); err != nil {
				t.Fatalf("Attach failed: %v", err)
			}

			got := decodeJWT(t, req.Header.Get("Authorization"), "edx")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("claims mismatch\n got: %#v\nwant: %#v", got, tt.want)
			}
		})
	}
}

func TestJWTAuth_WrongKeyFailsVerification(t *testing.T) {
	a, err := NewJWTAuth("alice", "edx")
	if err != nil {
		t.Fatal(err)
	}
	token, err := a.Token()
	if err != nil {
		t.Fatal(err)
	}

	_, err = jwt.Parse(token, func(*jwt.Token) (any, error) { return []byte("other"), nil })
	if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		t.Errorf("expected signature error, got %v", err)
	}
}

func TestJWTAuth_OverwritesExistingHeader(t *testing.T) {
	a, _ := NewJWTAuth("alice", "edx")
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")

	if err := a.Attach(req); err != nil {
		t.Fatal(err)
	}
	if values := req.Header.Values("Authorization"); len(values) != 1 || !strings.HasPrefix(values[0], "JWT ") {
		t.Errorf("expected exactly one JWT header, got %v", values)
	}
}

func TestNewJWTAuth_RequiresSigningKey(t *testing.T) {
	_, err := NewJWTAuth("alice", "")
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBearerAuth(t *testing.T) {
	a, err := NewBearerAuth("abc123")
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	if err := a.Attach(req); err != nil {
		t.Fatal(err)
	}

	if got := req.Header.Get("Authorization"); got != "Bearer abc123" {
		t.Errorf("unexpected header %q", got)
	}

	if _, err := NewBearerAuth(""); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSuppliedJWTAuth(t *testing.T) {
	payload := jwt.MapClaims{"key1": "value1", "key2": "vαlue2"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString([]byte("super-secret"))
	if err != nil {
		t.Fatal(err)
	}

	a, err := NewSuppliedJWTAuth(token)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	if err := a.Attach(req); err != nil {
		t.Fatal(err)
	}

	if got := req.Header.Get("Authorization"); got != "JWT "+token {
		t.Errorf("unexpected header %q", got)
	}

	if _, err := NewSuppliedJWTAuth(""); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestAttacherFunc(t *testing.T) {
	called := false
	var a Attacher = AttacherFunc(func(req *http.Request) error {
		called = true
		SetBearer(req, "fn")
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	if err := a.Attach(req); err != nil {
		t.Fatal(err)
	}
	if !called || req.Header.Get("Authorization") != "Bearer fn" {
		t.Error("AttacherFunc did not run")
	}
}
