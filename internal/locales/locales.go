// Package locales holds the user-facing bot messages.
package locales

import "strings"

// Message keys.
const (
	KeyWelcome        = "welcome"
	KeySetMeAsAdmin   = "welcome_setmeasadmin"
	KeyHelp           = "help"
	KeyUnknownCommand = "unknown_command"
	KeyBotPermUpdate  = "bot_perm_update"
	KeyRestrict       = "restrict"
	KeyRestrictFailed = "restrict_failed"
	KeyMomoFound      = "momo_found"
)

const fallbackLocale = "en"

var messages = map[string]map[string]string{
	"en": {
		KeyWelcome:        "Hi! I remove momo scam screenshots from groups.\n\nAdd me to a group and grant me the <b>Ban users</b> right so I can mute whoever posts one.",
		KeySetMeAsAdmin:   "Add me to a group",
		KeyHelp:           "These commands are supported:\n/start - welcome message\n/help - display this text",
		KeyUnknownCommand: "Unknown command. Use /help.",
		KeyBotPermUpdate:  "My permissions in this chat have changed.",
		KeyRestrict:       "Momo screenshot detected. The sender has been muted.",
		KeyRestrictFailed: "Momo screenshot detected, but I could not identify the sender.",
		KeyMomoFound:      "Momo screenshot detected. Grant me the Ban users right to mute senders automatically.",
	},
	"ru": {
		KeyWelcome:        "Привет! Я удаляю мошеннические скриншоты momo из групп.\n\nДобавьте меня в группу и выдайте право <b>Блокировка пользователей</b>, чтобы я мог ограничивать отправителей.",
		KeySetMeAsAdmin:   "Добавить в группу",
		KeyHelp:           "Доступные команды:\n/start - приветствие\n/help - эта справка",
		KeyUnknownCommand: "Неизвестная команда. Используйте /help.",
		KeyBotPermUpdate:  "Мои права в этом чате изменились.",
		KeyRestrict:       "Обнаружен скриншот momo. Отправитель ограничен.",
		KeyRestrictFailed: "Обнаружен скриншот momo, но отправителя определить не удалось.",
		KeyMomoFound:      "Обнаружен скриншот momo. Выдайте мне право блокировки, чтобы я ограничивал отправителей автоматически.",
	},
	"zh": {
		KeyWelcome:        "你好！我会在群组中识别 momo 诈骗截图。\n\n把我加入群组并授予<b>封禁用户</b>权限，我就能禁言发送者。",
		KeySetMeAsAdmin:   "把我加入群组",
		KeyHelp:           "支持以下命令：\n/start - 欢迎信息\n/help - 显示此帮助",
		KeyUnknownCommand: "未知命令，请使用 /help。",
		KeyBotPermUpdate:  "我在本群的权限已更新。",
		KeyRestrict:       "检测到 momo 截图，已禁言发送者。",
		KeyRestrictFailed: "检测到 momo 截图，但无法确定发送者。",
		KeyMomoFound:      "检测到 momo 截图。授予我封禁用户权限后即可自动禁言。",
	},
}

// T returns the message for key in locale. Region suffixes are ignored
// ("zh-hans" resolves to "zh"); unknown locales fall back to English and
// unknown keys to the key itself.
func T(locale, key string) string {
	if msg, ok := messages[normalize(locale)][key]; ok {
		return msg
	}
	if msg, ok := messages[fallbackLocale][key]; ok {
		return msg
	}
	return key
}

// Translator adapts T to the message processor's translator interface.
type Translator struct{}

// T implements the translator interface.
func (Translator) T(locale, key string) string {
	return T(locale, key)
}

func normalize(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		locale = locale[:i]
	}
	return locale
}
