package tests

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"

	echoapi "github.com/eduflow/eduflow/apps/api/echo"
	"github.com/eduflow/eduflow/core/user"
	emailsvc "github.com/eduflow/eduflow/services/email"
	testutil "github.com/eduflow/eduflow/tests"
)

func Test_userApi_login(t *testing.T) {
	resetDB(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "LolC@t123", user.RoleStudent, true)
	testutil.CreateUser(t, usrRepo, "N Dog", "ndog@test.cd", "LolC@t123", user.RoleStudent, false)

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown email", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Email: "lol@test.cd", Password: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Email: student.Email, Password: "lol"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", wantCode: http.StatusForbidden,
			body:     marchallObj(t, echoapi.LoginRequest{Email: "ndog@test.cd", Password: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "login ok", wantCode: http.StatusOK,
			body: marchallObj(t, echoapi.LoginRequest{Email: "  HERO@test.cd ", Password: "LolC@t123"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_signup(t *testing.T) {
	resetDB(t)

	testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "LolC@t123", user.RoleStudent, true)

	t.Run("signup ok", func(t *testing.T) {
		body := marchallObj(t, user.NewUser{
			Name:            "Jane",
			Email:           "jane@test.cd",
			Password:        "LolC@t123",
			PasswordConfirm: "LolC@t123",
		})
		req, rec := newRequest(http.MethodPost, "/v1/users/signup", body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var usr user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if usr.Role != user.RoleStudent {
			t.Errorf("Role = %q; want %q", usr.Role, user.RoleStudent)
		}
		if usr.IsActive == nil || !*usr.IsActive {
			t.Error("new account should be active")
		}
	})

	t.Run("role cannot be self-assigned", func(t *testing.T) {
		body := []byte(`{"name":"Evil","email":"evil@test.cd","password":"LolC@t123","password_confirm":"LolC@t123","role":"admin"}`)
		req, rec := newRequest(http.MethodPost, "/v1/users/signup", body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var usr user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if usr.Role != user.RoleStudent {
			t.Errorf("Role = %q; want %q", usr.Role, user.RoleStudent)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		body := marchallObj(t, user.NewUser{
			Name:            "Hero Again",
			Email:           "hero@test.cd",
			Password:        "LolC@t123",
			PasswordConfirm: "LolC@t123",
		})
		req, rec := newRequest(http.MethodPost, "/v1/users/signup", body)
		app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_userApi_userQuery(t *testing.T) {
	resetDB(t)

	path := func(search, ordering, role string, isActive *bool) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if role != "" {
			v.Add("role", role)
		}
		if isActive != nil {
			if *isActive {
				v.Add("is_active", "true")
			} else {
				v.Add("is_active", "false")
			}
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now()
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", user.RoleStudent, true, now.Add(1*time.Hour))
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher@test.cd", "", user.RoleInstructor, true, now.Add(2*time.Hour))
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, true, now.Add(3*time.Hour))
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog@test.cd", "", user.RoleStudent, false, now.Add(4*time.Hour))

	adminToken := getToken(t, admin)
	empty := marchallList(t, []interface{}{}...)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "Get all", path: "/v1/users", token: adminToken, wantData: marchallList(t, student, teacher, admin, naughty)},
		// filtering
		{name: "search (unknown)", path: path("lol", "", "", nil), token: adminToken, wantData: empty},
		{name: "search=HER", path: path("HER", "", "", nil), token: adminToken, wantData: marchallList(t, student)},
		{name: "role (unknown)", path: path("", "", "lol", nil), token: adminToken, wantData: empty},
		{name: "role=instructor", path: path("", "", user.RoleInstructor, nil), token: adminToken, wantData: marchallList(t, teacher)},
		{name: "is_active=false", path: path("", "", "", bPtr(false)), token: adminToken, wantData: marchallList(t, naughty)},
		{
			name: "role=student & is_active=true", path: path("", "", user.RoleStudent, bPtr(true)),
			token: adminToken, wantData: marchallList(t, student),
		},
		// ordering
		{
			name: "order by -created_at", path: path("", "-created_at", "", nil), token: adminToken,
			wantData: marchallList(t, naughty, admin, teacher, student),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userRefreshToken(t *testing.T) {
	resetDB(t)

	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog@test.cd", "", user.RoleStudent, false)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", user.RoleStudent, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   student.ID,
			Audience:  "EduFlow",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		Name:         student.Name,
		Email:        student.Email,
		Role:         student.Role,
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Inactive user not allowed", token: getToken(t, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "Refresh period expired", token: unrefreshableToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{name: "Token refreshed", token: getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userResetPassword(t *testing.T) {
	resetDB(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", user.RoleStudent, true)
	successData := marchallObj(t, echoapi.SuccessResponse{Success: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."})

	pathRegex, err := regexp.Compile("/password-reset/.+/.+")
	if err != nil {
		t.Fatalf("regexp.Compile(): %v", err)
	}

	type extraTest struct {
		emailSent bool
		to        mail.Address
	}
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required"}),
		},
		{
			name: "invalid email", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "unknown email", wantCode: http.StatusOK,
			body:     marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.com"}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "known email", wantCode: http.StatusOK,
			body:     marchallObj(t, echoapi.PasswordResetRequest{Email: student.Email}),
			wantData: successData, extra: extraTest{emailSent: true, to: mail.Address{Name: student.Name, Address: student.Email}},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/password-reset"

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ClearSentMessages()

			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if extra, ok := tt.extra.(extraTest); ok {
				if extra.emailSent {
					if len(emailsvc.SentMessages) != 1 {
						t.Fatalf("failed! len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
					}
					msg := emailsvc.SentMessages[0]
					if msg.To[0] != extra.to {
						t.Errorf("failed! To = %v; want %v", msg.To[0], extra.to)
					}
					if !strings.Contains(msg.TextContent, extra.to.Name) {
						t.Errorf("failed! text content does not contain recipient's name %q", extra.to.Name)
					}
					if !pathRegex.MatchString(msg.TextContent) {
						t.Errorf("failed! text content does not match pathRegex %v", pathRegex)
					}
				} else {
					if len(emailsvc.SentMessages) > 0 {
						t.Errorf("failed! len(SentMessages) = %d; want 0", len(emailsvc.SentMessages))
					}
				}
			}
		})
	}
}

func Test_userApi_me(t *testing.T) {
	resetDB(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", user.RoleStudent, true)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Get own profile", token: getToken(t, student), wantCode: http.StatusOK, wantData: marchallObj(t, student)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/users/me"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
