package exchange

import (
	"fmt"
	"strings"
)

// Credentials - расшифрованные реквизиты доступа к бирже
//
// В конфигурации и БД реквизиты хранятся зашифрованными (AES-256-GCM);
// сюда попадают уже в открытом виде, только на время жизни процесса.
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
}

// Registrar - конструктор внешней привязки биржи
//
// Реальные REST клиенты бирж подключаются снаружи через Register:
// ядро их не реализует и знает только интерфейс Gateway.
type Registrar func(creds Credentials) (Gateway, error)

var registrars = map[string]Registrar{}

// Register регистрирует конструктор шлюза под именем биржи
func Register(name string, fn Registrar) {
	registrars[strings.ToLower(name)] = fn
}

// NewGateway создает шлюз биржи по имени
//
// "paper" встроен всегда; остальные имена разрешаются через Register.
func NewGateway(name string, creds Credentials) (Gateway, error) {
	name = strings.ToLower(name)

	if name == "paper" {
		return NewPaperGateway(PaperConfig{Seed: 1}), nil
	}

	if fn, ok := registrars[name]; ok {
		return fn(creds)
	}

	return nil, fmt.Errorf("unsupported exchange: %s", name)
}

// IsSupported проверяет, доступен ли шлюз с данным именем
func IsSupported(name string) bool {
	name = strings.ToLower(name)
	if name == "paper" {
		return true
	}
	_, ok := registrars[name]
	return ok
}
