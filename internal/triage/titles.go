package triage

import "strings"

const (
	newSessionTitle = "محادثة جديدة"
	titleMaxRunes   = 25
)

var sessionTopics = []struct {
	topic    string
	keywords []string
}{
	{"صداع", []string{"صداع", "ألم الرأس", "صداع نصفي", "ميجرين", "الم في الراس"}},
	{"معدة", []string{"معدة", "إسهال", "إمساك", "حرقة", "قولون", "بطن", "غثيان", "قيء"}},
	{"قلب", []string{"قلب", "ضغط الدم", "خفقان", "ذبحة", "صدر", "نبض"}},
	{"حساسية", []string{"حساسية", "طفح جلدي", "حكة", "هرش", "أكزيما", "احمرار"}},
	{"تنفس", []string{"تنفس", "ربو", "سعال", "كحة", "ضيق تنفس", "انفلونزا", "زكام", "كورونا", "كوفيد"}},
	{"عظام", []string{"عظام", "مفاصل", "كسر", "ظهر", "رقبة", "ركبة"}},
	{"عيون", []string{"عيون", "عين", "رؤية", "نظر", "ضبابية"}},
	{"أسنان", []string{"أسنان", "ضرس", "لثة", "تسوس", "طربوش"}},
	{"نفسية", []string{"إكتئاب", "قلق", "توتر", "نفسية", "نوم", "أرق"}},
	{"أطفال", []string{"طفل", "رضيع", "حرارة", "تطعيم", "طفح"}},
	{"حمل", []string{"حمل", "ولادة", "رضاعة", "جنين", "دورة شهرية"}},
}

// SessionTitle names a chat session from its user questions.
func SessionTitle(questions []string) string {
	if len(questions) == 0 {
		return newSessionTitle
	}
	combined := strings.Join(questions, " ")
	for _, t := range sessionTopics {
		for _, kw := range t.keywords {
			if strings.Contains(combined, kw) {
				return "استشارة حول " + t.topic
			}
		}
	}
	first := []rune(questions[0])
	if len(first) > titleMaxRunes {
		return string(first[:titleMaxRunes]) + "..."
	}
	return questions[0]
}
