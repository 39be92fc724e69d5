package locale

// translations maps English keys to their az and ru texts.
var translations = map[string]map[string]string{
	"Signing in with Wallet": {
		"az": "Wallet ilə daxil olunur",
		"ru": "Вход через Wallet",
	},
	"Completing sign in...": {
		"az": "Giriş tamamlanır...",
		"ru": "Завершение входа...",
	},
	"Signed in successfully": {
		"az": "Uğurla daxil oldunuz",
		"ru": "Вход выполнен успешно",
	},
	"Sign in failed": {
		"az": "Giriş alınmadı",
		"ru": "Не удалось войти",
	},
	"This window will close automatically.": {
		"az": "Bu pəncərə avtomatik bağlanacaq.",
		"ru": "Это окно закроется автоматически.",
	},
	"Redirecting...": {
		"az": "Yönləndirilir...",
		"ru": "Перенаправление...",
	},
	"Sign in with Wallet": {
		"az": "Wallet ilə daxil ol",
		"ru": "Войти через Wallet",
	},
	"Sign out": {
		"az": "Çıxış",
		"ru": "Выйти",
	},
	"Back to home": {
		"az": "Ana səhifəyə qayıt",
		"ru": "На главную",
	},
	"Popup was blocked. Please allow popups for this site and try again.": {
		"az": "Pəncərə bloklandı. Bu sayt üçün açılan pəncərələrə icazə verin və yenidən cəhd edin.",
		"ru": "Всплывающее окно заблокировано. Разрешите всплывающие окна для этого сайта и повторите попытку.",
	},
	"Invalid state parameter": {
		"az": "Yanlış state parametri",
		"ru": "Неверный параметр state",
	},
	"No authorization code received": {
		"az": "Avtorizasiya kodu alınmadı",
		"ru": "Код авторизации не получен",
	},
	"Wallet authentication was cancelled": {
		"az": "Wallet ilə giriş ləğv edildi",
		"ru": "Вход через Wallet отменён",
	},
	"Wallet authentication failed": {
		"az": "Wallet ilə giriş alınmadı",
		"ru": "Не удалось войти через Wallet",
	},
	"No token received": {
		"az": "Token alınmadı",
		"ru": "Токен не получен",
	},
	"Wallet login timed out": {
		"az": "Wallet ilə girişin vaxtı bitdi",
		"ru": "Время входа через Wallet истекло",
	},
	"Could not open the wallet login page": {
		"az": "Wallet giriş səhifəsini açmaq mümkün olmadı",
		"ru": "Не удалось открыть страницу входа Wallet",
	},
}
