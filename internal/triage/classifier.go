// Package triage holds the keyword heuristics used by the chat flow: the
// specialty hint shown before booking and the session titles.
package triage

import "strings"

// DefaultSpecialty is returned when no keyword matches (internal medicine).
const DefaultSpecialty = "باطنة"

type specialtyKeywords struct {
	specialty string
	keywords  []string
}

// specialtyTable is ordered; ties go to the earlier entry.
var specialtyTable = []specialtyKeywords{
	{"عظام", []string{
		"عظام", "عظم", "كسر", "كسور", "مفصل", "مفاصل", "التهاب المفاصل", "الركبة", "الظهر",
		"آلام المفاصل", "هشاشة", "اصابة رياضية", "خشونة", "فقرات", "عمود فقري", "ديسك",
		"انزلاق غضروفي", "رقبة", "كتف", "كاحل", "روماتيزم", "شد عضلي", "التواء", "خلع", "جبس",
	}},
	{"قلب", []string{
		"قلب", "ضغط الدم", "الشريان", "نبض", "ذبحة", "صدرية", "جلطة", "الشرايين", "خفقان",
		"أزمة قلبية", "نوبة قلبية", "ضيق تنفس", "رجفان أذيني", "ضغط مرتفع", "كولسترول",
		"قسطرة", "دعامة", "صمام القلب", "ألم في الصدر", "وخز في الصدر",
	}},
	{"جراحة", []string{
		"جراحة", "عملية", "استئصال", "شق", "جرح", "تدخل جراحي", "تخدير", "بنج", "عملية جراحية",
		"جراح", "غرز", "منظار", "ورم", "كتلة", "خراج", "ناسور", "الزائدة",
	}},
	{"عيون", []string{
		"عيون", "عين", "نظر", "عدسة", "رؤية", "قرنية", "شبكية", "جفن", "جفاف العين", "نظارة",
		"ضعف النظر", "قصر النظر", "المياه البيضاء", "المياه الزرقاء", "ضغط العين",
		"احمرار العين", "الحول", "زغللة",
	}},
	{"أطفال", []string{
		"طفل", "أطفال", "الرضع", "رضيع", "مواليد", "الرضاعة", "التطعيم", "بكاء", "حديث الولادة",
		"فطام", "مغص الأطفال", "حمى الأطفال", "طفح الحفاض", "لقاحات", "تطعيمات", "تأخر النطق",
	}},
	{"جهاز هضمي", []string{
		"جهاز هضمي", "معدة", "أمعاء", "هضم", "قولون", "مرارة", "بنكرياس", "قرحة", "قيء", "حرقة",
		"عسر الهضم", "حموضة", "ارتجاع المريء", "غثيان", "استفراغ", "إسهال", "إمساك", "انتفاخ",
		"غازات", "مغص", "ألم في البطن", "جرثومة المعدة", "الكبد", "بواسير",
	}},
	{"جلدية", []string{
		"جلد", "طفح", "بشرة", "حساسية", "اكزيما", "حبوب", "صدفية", "الجرب", "بثور", "حكة", "هرش",
		"احمرار", "كلف", "نمش", "شامات", "فطريات", "هربس", "تساقط الشعر", "ثعلبة", "قشرة",
	}},
	{"أسنان", []string{
		"أسنان", "سن", "ضرس", "لثة", "تسوس", "ألم الأسنان", "حشو", "تقويم", "طربوش", "جسر",
		"ضرس العقل", "نزيف اللثة", "جير", "عصب السن", "علاج العصب", "زراعة الأسنان", "رائحة الفم",
	}},
	{"نساء وتوليد", []string{
		"نساء", "توليد", "حمل", "ولادة", "رحم", "الطمث", "الدورة", "الدورة الشهرية", "المبيض",
		"حيض", "تأخر الدورة", "إجهاض", "حامل", "سونار", "ولادة قيصرية", "تكيس المبايض",
		"إفرازات مهبلية", "سن اليأس", "منع الحمل", "لولب",
	}},
	{"مخ واعصاب", []string{
		"مخ", "دماغ", "أعصاب", "عصبي", "صداع", "شقيقة", "صرع", "شلل", "تنميل", "رعشة", "دوخة",
		"دوار", "غيبوبة", "فقدان الوعي", "ارتجاج", "وخز", "خدر", "تشنجات", "سكتة دماغية",
		"عرق النسا", "صداع نصفي",
	}},
	{"أنف وأذن وحنجرة", []string{
		"أنف", "أذن", "حنجرة", "سمع", "لوز", "حلق", "الجيوب الأنفية", "التهاب الأذن",
		"نزيف الأنف", "انسداد الانف", "طنين", "احتقان الأنف", "رشح", "زكام", "انفلونزا",
		"نزلة برد", "عطس", "التهاب الحلق", "بحة الصوت", "شمع الأذن",
	}},
	{"مسالك بولية", []string{
		"مسالك بولية", "كلية", "كلى", "مثانة", "بول", "تبول", "حصوة", "حصوات", "حرقان البول",
		"بروستاتا", "حالب", "فشل كلوي", "غسيل كلى", "سلس البول", "دم في البول", "مغص كلوي",
	}},
	{"غدد صماء", []string{
		"غدد صماء", "سكري", "سكر", "هرمون", "هرمونات", "درقية", "الغدة الدرقية", "أنسولين",
		"غدة", "ارتفاع السكر", "انخفاض السكر", "مقاومة الأنسولين", "سكر تراكمي", "هرمون النمو",
	}},
	{"طب نفسي", []string{
		"طب نفسي", "نفسي", "اكتئاب", "قلق", "توتر", "وسواس", "اضطراب", "رهاب", "خوف", "هلع",
		"عزلة", "أفكار سلبية", "ثنائي القطب", "صدمة نفسية", "إدمان", "أرق", "اضطرابات النوم",
	}},
	{DefaultSpecialty, []string{
		"حمى", "سخونة", "حرارة", "تعب", "إرهاق", "ضعف عام", "فقدان الوزن", "فقدان الشهية",
		"التهاب", "عدوى", "تعرق ليلي", "قشعريرة", "أنيميا", "فقر الدم", "نقص الحديد",
		"فحوصات دورية", "تحاليل",
	}},
}

// Classification is the result of ClassifySpecialty.
type Classification struct {
	Specialty string         `json:"specialty"`
	Matches   int            `json:"matches"`
	Scores    map[string]int `json:"scores,omitempty"`
}

// ClassifySpecialty counts keyword hits per specialty in the lowercased text
// and returns the best one. It is a hint and never gates a booking.
func ClassifySpecialty(texts ...string) Classification {
	text := strings.ToLower(strings.Join(texts, " "))
	result := Classification{Specialty: DefaultSpecialty}
	if strings.TrimSpace(text) == "" {
		return result
	}
	for _, entry := range specialtyTable {
		count := 0
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				count++
			}
		}
		if count == 0 {
			continue
		}
		if result.Scores == nil {
			result.Scores = make(map[string]int)
		}
		result.Scores[entry.specialty] = count
		if count > result.Matches {
			result.Specialty = entry.specialty
			result.Matches = count
		}
	}
	return result
}

// Specialties lists the labels known to the classifier in table order.
func Specialties() []string {
	out := make([]string, 0, len(specialtyTable))
	for _, entry := range specialtyTable {
		out = append(out, entry.specialty)
	}
	return out
}
