package middleware

import (
	"crypto/subtle"
	"net/http"

	"tradebot/pkg/crypto"
)

// BasicAuth защищает операторский API через HTTP Basic Authentication
//
// Пароль хранится как bcrypt хеш (API_PASSWORD_HASH); пустой хеш
// отключает аутентификацию — допустимо только для локального
// развёртывания. Имя пользователя сравнивается за константное время.
func BasicAuth(username, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if passwordHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, pass, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="tradebot"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			passMatch := crypto.CheckPassword(pass, passwordHash) == nil

			if !userMatch || !passMatch {
				w.Header().Set("WWW-Authenticate", `Basic realm="tradebot"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
