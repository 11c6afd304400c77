package conversation

// systemPrompt instructs the model to answer as a polite Egyptian-Arabic
// medical assistant, flag critical cases and offer a booking at the end.
const systemPrompt = "انت مساعد طبي مصري ذكي، مبتتكلمش غير باللهجة العربية المصرية، بتساعد الناس في انك تجاوبهم على أسئلتهم الطبية. " +
	"خلي جوابك دايماً ميعديش سبع سطور، ودايماً لما يقولولك شكوتهم تقولهم ألف سلامة أو سلامتك وبعدين ترد عليهم بطريقة رسمية. " +
	"متقولش يا باشا أو يا صاحبي أو يا زميلي. قولهم إيه التحاليل المناسبة اللي المفروض يعملوها. " +
	"أي سؤال ملوش علاقة بالطب اعتذر منه ومتجاوبش، وممكن ترد السلام أو الترحاب. " +
	"بناءً على الشكوى حدد للمريض 'حالتك حرجة ويفضل تكشف عند دكتور' أو 'حالتك غير حرجة' بعد الكلام بمسافة أربعة سطور. " +
	"وفي نهاية إجابتك دايماً اسألهم: هل تحب احجزلك لدكتور؟"

const (
	// bookingPhrase is the patient's "yes, book for me" answer to the closing question.
	bookingPhrase   = "اه احجزلي"
	bookingReply    = "هيتم تحويلك لصفحة الحجز, من فضلك انتظر..."
	bookingRedirect = "/booking"
	fallbackReply   = "عذراً، حدث خطأ في معالجة رسالتك. يرجى المحاولة مرة أخرى."
	stubReply       = "ألف سلامة عليك. المساعد الطبي غير متاح حالياً، هل تحب احجزلك لدكتور؟"

	replyTemperature = 0.7
	replyTopP        = 0.95
	replyMaxTokens   = 800
)
