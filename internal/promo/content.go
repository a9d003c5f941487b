package promo

import "promo-bot/internal/domain"

// Callback-данные кнопок.
const (
	CallbackPromos  = "PROMOS"
	CallbackPlayNow = "PLAY_NOW"
)

// Card — одна промо-карточка: картинка и подпись.
type Card struct {
	Image   string
	Caption string
}

// Cards — статичная промо-подборка казино.
var Cards = []Card{
	{
		Image:   "https://cdn.prod.website-files.com/696e1363f17d66577979e157/699ad9dc8a929099d7bc16d8_Frame%202147224851.png",
		Caption: "<b>💰 Deposit Bonus</b>\n<b>100% up to $1,000 + 200 FS</b>\n<i>First deposit</i>\n\nBoost your first top-up with extra cash + free spins.",
	},
	{
		Image:   "https://cdn.prod.website-files.com/696e1363f17d66577979e157/699ad9dce940b2742d8b175e_Frame%202147224852.png",
		Caption: "<b>💰 Deposit Bonus</b>\n<b>50% up to $200</b>\n<i>Second deposit</i>\n\nReload and keep the momentum going with an extra boost.",
	},
	{
		Image:   "https://cdn.prod.website-files.com/696e1363f17d66577979e157/699ad9ddb11b6cfb66af44ff_Frame%202147224853.png",
		Caption: "<b>💰 Deposit Bonus</b>\n<b>75% up to $300</b>\n<i>Third deposit</i>\n\nBigger boost on your third deposit — more balance, more play.",
	},
	{
		Image:   "https://cdn.prod.website-files.com/696e1363f17d66577979e157/699ad9dc875e0cfad9cffe83_Frame%202147224834.png",
		Caption: "<b>⚡ Reload Bonus</b>\n<b>40% up to $80 + 10 FS</b>\n<i>Every Monday</i>\n\nMonday reload is live — grab it before the day ends.",
	},
	{
		Image:   "https://cdn.prod.website-files.com/696e1363f17d66577979e157/699ad9dc0d32b32837f20197_Frame%202147224839.png",
		Caption: "<b>⚡ Reload Bonus</b>\n<b>50% up to $100 + 15 FS</b>\n<i>Every Wednesday</i>\n\nMidweek boost + extra free spins.",
	},
	{
		Image:   "https://cdn.prod.website-files.com/696e1363f17d66577979e157/699ad9dce4ea29439feea0a3_Frame%202147224840.png",
		Caption: "<b>⚡ Reload Bonus</b>\n<b>60% up to €240 + 20 FS</b>\n<i>Every Friday</i>\n\nFriday reload hits harder — big boost + free spins.",
	},
}

// FollowupCaption — текст фоллоу-апа для не сконвертировавшихся.
const FollowupCaption = "<b>🔥 Live winners right now</b>\n" +
	"@yuri.lop66 just won.\n" +
	"@lucky777, @sven_mori51 and 100+ others have won a total of <b>$2,883,973.17</b>.\n\n" +
	"<b>Be next.</b> Get your <b>First Deposit Bonus: 100% up to $1,000 + 200 FS</b> 👇\n\n" +
	"<i>Play responsibly. 18+.</i>"

// ReloadTexts — тексты регулярных reload-рассылок по дням недели.
var ReloadTexts = map[string]string{
	"monday":    "🚀 <b>Reload Bonus is LIVE today (Monday)</b>\n40% up to $80 + 10 FS\n\nTap below 👇",
	"wednesday": "🚀 <b>Reload Bonus is LIVE today (Wednesday)</b>\n50% up to $100 + 15 FS\n\nTap below 👇",
	"friday":    "🚀 <b>Reload Bonus is LIVE today (Friday)</b>\n60% up to €240 + 20 FS\n\nTap below 👇",
}

// MainMenu — клавиатура приветственного сообщения.
func MainMenu(supportURL string) [][]domain.OutboundButton {
	return [][]domain.OutboundButton{
		{{Label: "🎁 Promotions", Callback: CallbackPromos}},
		{{Label: "▶️ Play Now", Callback: CallbackPlayNow}},
		{{Label: "🧑‍💻 Support", URL: supportURL}},
	}
}

// PlayKeyboard — клавиатура под промо и фоллоу-апом.
func PlayKeyboard(supportURL string) [][]domain.OutboundButton {
	return [][]domain.OutboundButton{
		{{Label: "▶️ Play Now", Callback: CallbackPlayNow}},
		{{Label: "🧑‍💻 Support", URL: supportURL}},
	}
}

// ReloadKeyboard — клавиатура регулярной reload-рассылки.
func ReloadKeyboard() [][]domain.OutboundButton {
	return [][]domain.OutboundButton{
		{{Label: "▶️ Play Now", Callback: CallbackPlayNow}},
		{{Label: "🎁 Promotions", Callback: CallbackPromos}},
	}
}

// CasinoLinkKeyboard — одиночная кнопка со ссылкой на казино.
func CasinoLinkKeyboard(casinoURL string) [][]domain.OutboundButton {
	return [][]domain.OutboundButton{
		{{Label: "Open 8Spin", URL: casinoURL}},
	}
}
