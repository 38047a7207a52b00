package messages

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
)

// Message keys. Keys double as lookup ids in the catalog.
const (
	keyWelcome           = "welcome"
	keyAskResource       = "ask_resource"
	keyAskRangeStart     = "ask_range_start"
	keyAskRangeEnd       = "ask_range_end"
	keyFormatError       = "format_error"
	keyRangeError        = "range_error"
	keyRangeTooLong      = "range_too_long"
	keyProbing           = "probing"
	keyChooseQuality     = "choose_quality"
	keyQualityNotOffered = "quality_not_offered"
	keyFallbackBest      = "fallback_best"
	keyFallbackHeight    = "fallback_height"
	keyChooseMode        = "choose_mode"
	keyStaleChoice       = "stale_choice"
	keyRunStarted        = "run_started"
	keyRunStartedAudio   = "run_started_audio"
	keyBusy              = "busy"
	keyCancelled         = "cancelled"
	keyCancelRequested   = "cancel_requested"
	keyRunCompleted      = "run_completed"
	keyRunCompletedParts = "run_completed_parts"
	keyDegraded          = "degraded"
	keyRunCancelled      = "run_cancelled"
	keyRunFailed         = "run_failed"
	keyNewLink           = "new_link"
	keyPartCaption       = "part_caption"
	keyModeVideo         = "mode_video"
	keyModeAudio         = "mode_audio"
	keyCancelButton      = "cancel_button"
	keyFailurePrefix     = "failure."
)

var english = map[string]string{
	keyWelcome:           "Send me a video link and I will cut the part you need.",
	keyAskResource:       "Send a video link to start.",
	keyAskRangeStart:     "Send the start time (SS, MM:SS or HH:MM:SS).",
	keyAskRangeEnd:       "Start set to %s. Now send the end time.",
	keyFormatError:       "That time is not valid. Use SS, MM:SS or HH:MM:SS and send it again.",
	keyRangeError:        "The end time must be after the start time (%s).",
	keyRangeTooLong:      "Clips are limited to %s. Send an earlier end time.",
	keyProbing:           "Checking the available qualities...",
	keyChooseQuality:     "Choose the quality:",
	keyQualityNotOffered: "That quality is not available. Choose one of: %s",
	keyFallbackBest:      "No standard quality (144p to 1080p) was found. The best available quality will be used.",
	keyFallbackHeight:    "No standard quality was found. Falling back to %sp.",
	keyChooseMode:        "Send the clip as video or as audio?",
	keyStaleChoice:       "That button belongs to an earlier link. Use the latest message.",
	keyRunStarted:        "Cutting %s to %s at %s...",
	keyRunStartedAudio:   "Extracting audio from %s to %s...",
	keyBusy:              "A clip is still being prepared. Send /cancel to stop it.",
	keyCancelled:         "Cancelled.",
	keyCancelRequested:   "Stopping the current clip...",
	keyRunCompleted:      "Done!",
	keyRunCompletedParts: "Done! The clip was sent in %d parts.",
	keyDegraded:          "The requested quality was not available; a lower one was used.",
	keyRunCancelled:      "The clip was cancelled.",
	keyRunFailed:         "The clip could not be made: %s",
	keyNewLink:           "Send a new link to cut another clip.",
	keyPartCaption:       "part %d/%d",
	keyModeVideo:         "Video",
	keyModeAudio:         "Audio",
	keyCancelButton:      "Cancel",

	keyFailurePrefix + "acquire":   "the video could not be downloaded.",
	keyFailurePrefix + "trim":      "cutting the video failed.",
	keyFailurePrefix + "split":     "splitting the clip failed.",
	keyFailurePrefix + "too_large": "a part is too large for Telegram. Try a shorter range or a lower quality.",
	keyFailurePrefix + "delivery":  "Telegram did not accept the file.",
	keyFailurePrefix + "timeout":   "it took too long. Try a shorter range.",
	keyFailurePrefix + "no_space":  "the server is out of disk space. Try again later.",
	keyFailurePrefix + "internal":  "an unexpected error occurred.",
}

var arabic = map[string]string{
	keyWelcome:           "🎥 أرسل رابط فيديو لبدء القص.",
	keyAskResource:       "🎥 أرسل رابط فيديو لبدء القص.",
	keyAskRangeStart:     "⏱️ أرسل وقت البداية (SS أو MM:SS أو HH:MM:SS).",
	keyAskRangeEnd:       "تم تحديد البداية %s. ⏱️ الآن أرسل وقت النهاية.",
	keyFormatError:       "⚠️ صيغة الوقت غير صحيحة.\nأعد الإرسال.",
	keyRangeError:        "⚠️ وقت النهاية يجب أن يكون أكبر من وقت البداية (%s).",
	keyRangeTooLong:      "⚠️ أقصى طول للمقطع %s. أرسل وقت نهاية أقرب.",
	keyProbing:           "🔍 يتم الآن فحص الجودات…",
	keyChooseQuality:     "🎚️ اختر الجودة:",
	keyQualityNotOffered: "⚠️ هذه الجودة غير متوفرة. اختر من: %s",
	keyFallbackBest:      "⚠️ لا توجد جودات قياسية (144–1080p).\nسيتم اختيار أفضل جودة تلقائياً.",
	keyFallbackHeight:    "⚠️ لا توجد جودات قياسية. سيتم استخدام %sp.",
	keyChooseMode:        "هل تريد المقطع فيديو أم صوت؟",
	keyStaleChoice:       "انتهت الجلسة. أرسل رابط جديد.",
	keyRunStarted:        "⏳ يتم الآن القص من %s إلى %s بجودة %s…",
	keyRunStartedAudio:   "⏳ يتم الآن استخراج الصوت من %s إلى %s…",
	keyBusy:              "⏳ ما زال المقطع قيد التجهيز. أرسل /cancel لإيقافه.",
	keyCancelled:         "تم الإلغاء.",
	keyCancelRequested:   "جاري إيقاف المقطع الحالي…",
	keyRunCompleted:      "✅ انتهى!",
	keyRunCompletedParts: "✅ انتهى! تم إرسال المقطع على %d أجزاء.",
	keyDegraded:          "الجودة المطلوبة غير متوفرة، تم استخدام جودة أقل.",
	keyRunCancelled:      "تم إلغاء المقطع.",
	keyRunFailed:         "❌ تعذر تجهيز المقطع: %s",
	keyNewLink:           "🎥 أرسل رابطاً جديداً لقص مقطع آخر.",
	keyPartCaption:       "الجزء %d/%d",
	keyModeVideo:         "فيديو",
	keyModeAudio:         "صوت",
	keyCancelButton:      "إلغاء",

	keyFailurePrefix + "acquire":   "فشل تحميل الفيديو.",
	keyFailurePrefix + "trim":      "حدث خطأ أثناء القص.",
	keyFailurePrefix + "split":     "حدث خطأ أثناء تقسيم المقطع.",
	keyFailurePrefix + "too_large": "أحد الأجزاء أكبر من حد تلجرام. جرّب مدة أقصر أو جودة أقل.",
	keyFailurePrefix + "delivery":  "رفض تلجرام الملف.",
	keyFailurePrefix + "timeout":   "استغرق الأمر وقتاً طويلاً. جرّب مدة أقصر.",
	keyFailurePrefix + "no_space":  "لا توجد مساحة كافية على الخادم. حاول لاحقاً.",
	keyFailurePrefix + "internal":  "حدث خطأ غير متوقع.",
}

// Supported lists the languages the catalog carries, default first.
var Supported = []language.Tag{language.English, language.Arabic}

func buildCatalog() (catalog.Catalog, error) {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, table := range map[language.Tag]map[string]string{
		language.English: english,
		language.Arabic:  arabic,
	} {
		for key, msg := range table {
			if err := b.SetString(tag, key, msg); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}
