package notify

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/wolfman30/medassist/internal/appointments"
)

const (
	brandName          = "MedAssist"
	dateLayout         = "2006-01-02"
	bookingNotesRunes  = 100
	subjectWelcome     = "مرحباً بك في " + brandName + " - المساعد الطبي"
	subjectConfirmed   = "تأكيد موعدك مع " + brandName
	subjectCancelled   = "تم إلغاء موعدك - " + brandName
	subjectBookingRecv = "تم استلام طلب الحجز الخاص بك - " + brandName
)

func confirmationSMS(a appointments.Appointment) string {
	return fmt.Sprintf("مرحباً %s،\nتم تأكيد موعدك: %s\nد. %s\n%s %s\n%s",
		a.Patient.Name,
		a.Schedule.Specialty,
		a.Schedule.DoctorName,
		a.Schedule.AppointmentDate.Format(dateLayout),
		a.Schedule.StartTime,
		a.Schedule.Location,
	)
}

func cancellationSMS(a appointments.Appointment, selfService bool) string {
	heading := "تم إلغاء موعدك:"
	if selfService {
		heading = "تم إلغاء موعدك بناءً على طلبك:"
	}
	return fmt.Sprintf("مرحباً %s،\n%s\n%s", a.Patient.Name, heading, a.Schedule.AppointmentDate.Format(dateLayout))
}

func bookingRequestSMS(a appointments.Appointment) string {
	age := "-"
	if a.Patient.Age > 0 {
		age = strconv.Itoa(a.Patient.Age)
	}
	return fmt.Sprintf("طلب حجز:\n%s (%s)\n%s\n%s\nسنتواصل معك قريباً",
		a.Patient.Name, age, a.Schedule.Specialty, truncateRunes(a.Notes, bookingNotesRunes))
}

func confirmationEmail(a appointments.Appointment) EmailMessage {
	lines := []string{
		"مرحباً " + a.Patient.Name + "،",
		"تم تأكيد موعدك بنجاح. تفاصيل الموعد:",
		"التخصص: " + a.Schedule.Specialty,
		"الطبيب: د. " + a.Schedule.DoctorName,
		"التاريخ: " + a.Schedule.AppointmentDate.Format(dateLayout),
		"الوقت: " + a.Schedule.StartTime + " - " + a.Schedule.EndTime,
		"المكان: " + a.Schedule.Location,
		"يرجى الحضور قبل الموعد بـ 15 دقيقة.",
	}
	return buildEmail(a.Patient.Email, a.Patient.Name, subjectConfirmed, lines)
}

func cancellationEmail(a appointments.Appointment, selfService bool) EmailMessage {
	reason := "نأسف لإبلاغك بأنه تم إلغاء موعدك."
	if selfService {
		reason = "تم إلغاء موعدك بناءً على طلبك."
	}
	lines := []string{
		"مرحباً " + a.Patient.Name + "،",
		reason,
		"التخصص: " + a.Schedule.Specialty,
		"التاريخ: " + a.Schedule.AppointmentDate.Format(dateLayout),
		"يمكنك حجز موعد جديد في أي وقت من خلال التطبيق.",
	}
	return buildEmail(a.Patient.Email, a.Patient.Name, subjectCancelled, lines)
}

func bookingRequestEmail(a appointments.Appointment) EmailMessage {
	lines := []string{
		"مرحباً " + a.Patient.Name + "،",
		"تم استلام طلب الحجز الخاص بك وسيتواصل معك فريقنا قريباً لتحديد الموعد.",
		"التخصص المطلوب: " + a.Schedule.Specialty,
	}
	if a.Notes != "" {
		lines = append(lines, "ملاحظاتك: "+a.Notes)
	}
	return buildEmail(a.Patient.Email, a.Patient.Name, subjectBookingRecv, lines)
}

func welcomeEmail(name, email string) EmailMessage {
	lines := []string{
		"مرحباً " + name + "،",
		"شكراً لتسجيلك في " + brandName + ". يمكنك الآن التحدث مع المساعد الطبي وحجز المواعيد بسهولة.",
	}
	return buildEmail(email, name, subjectWelcome, lines)
}

func buildEmail(to, name, subject string, lines []string) EmailMessage {
	var b strings.Builder
	b.WriteString(`<div dir="rtl" style="font-family: Tahoma, Arial, sans-serif;">`)
	for _, line := range lines {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}
	b.WriteString("</div>")
	return EmailMessage{
		To:      to,
		ToName:  name,
		Subject: subject,
		Body:    strings.Join(lines, "\n"),
		HTML:    b.String(),
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
