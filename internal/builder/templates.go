package builder

import (
	"fmt"
	"strings"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
)

// templateDef is the closed contract for one notification type: the
// parameters it requires, its defaults, and both language variants.
type templateDef struct {
	requiredParams  []string
	defaultPriority domain.Priority
	defaultChannels []domain.Channel
	titleAr         string
	titleEn         string
	bodyAr          string
	bodyEn          string
}

// templates is the closed registry of notification types. Adding a type
// means adding an entry here and a constant in the domain package.
var templates = map[domain.NotificationType]templateDef{
	domain.NotificationTypeSessionReminder: {
		requiredParams:  []string{"student_name", "session_time"},
		defaultPriority: domain.PriorityHigh,
		defaultChannels: []domain.Channel{domain.ChannelInApp, domain.ChannelPush, domain.ChannelSMS},
		titleAr:         "تذكير بالجلسة",
		titleEn:         "Session Reminder",
		bodyAr:          "جلسة {{student_name}} في {{session_time}}",
		bodyEn:          "Session for {{student_name}} at {{session_time}}",
	},
	domain.NotificationTypeSessionStarted: {
		requiredParams:  []string{"student_name"},
		defaultPriority: domain.PriorityHigh,
		defaultChannels: []domain.Channel{domain.ChannelInApp, domain.ChannelPush},
		titleAr:         "بدأت الجلسة",
		titleEn:         "Session Started",
		bodyAr:          "بدأت جلسة {{student_name}} الآن",
		bodyEn:          "The session for {{student_name}} is starting now",
	},
	domain.NotificationTypeAttendanceCheckin: {
		requiredParams:  []string{"student_name", "checkin_time"},
		defaultPriority: domain.PriorityMedium,
		defaultChannels: []domain.Channel{domain.ChannelInApp, domain.ChannelPush},
		titleAr:         "تسجيل الحضور",
		titleEn:         "Attendance Check-in",
		bodyAr:          "سجل {{student_name}} الحضور في {{checkin_time}}",
		bodyEn:          "{{student_name}} checked in at {{checkin_time}}",
	},
	domain.NotificationTypeAttendanceLate: {
		requiredParams:  []string{"student_name", "session_time"},
		defaultPriority: domain.PriorityHigh,
		defaultChannels: []domain.Channel{domain.ChannelInApp, domain.ChannelPush, domain.ChannelSMS},
		titleAr:         "تأخر عن الجلسة",
		titleEn:         "Late for Session",
		bodyAr:          "لم يحضر {{student_name}} لجلسة {{session_time}} بعد",
		bodyEn:          "{{student_name}} has not arrived for the {{session_time}} session yet",
	},
	domain.NotificationTypeProgressUpdate: {
		requiredParams:  []string{"student_name", "summary"},
		defaultPriority: domain.PriorityMedium,
		defaultChannels: []domain.Channel{domain.ChannelInApp, domain.ChannelEmail},
		titleAr:         "تحديث التقدم",
		titleEn:         "Progress Update",
		bodyAr:          "تقدم جديد لـ {{student_name}}: {{summary}}",
		bodyEn:          "New progress for {{student_name}}: {{summary}}",
	},
	domain.NotificationTypeGoalCompleted: {
		requiredParams:  []string{"student_name", "goal_name"},
		defaultPriority: domain.PriorityMedium,
		defaultChannels: []domain.Channel{domain.ChannelInApp, domain.ChannelPush, domain.ChannelEmail},
		titleAr:         "تم تحقيق الهدف",
		titleEn:         "Goal Completed",
		bodyAr:          "أكمل {{student_name}} الهدف: {{goal_name}}",
		bodyEn:          "{{student_name}} completed the goal: {{goal_name}}",
	},
	domain.NotificationTypeEmergencyContact: {
		requiredParams:  []string{"student_name", "message"},
		defaultPriority: domain.PriorityUrgent,
		defaultChannels: domain.SupportedChannels(),
		titleAr:         "حالة طارئة",
		titleEn:         "Emergency",
		bodyAr:          "حالة طارئة تخص {{student_name}}: {{message}}",
		bodyEn:          "Emergency regarding {{student_name}}: {{message}}",
	},
	domain.NotificationTypeSystemUpdate: {
		requiredParams:  []string{"message"},
		defaultPriority: domain.PriorityLow,
		defaultChannels: []domain.Channel{domain.ChannelInApp},
		titleAr:         "تحديث النظام",
		titleEn:         "System Update",
		bodyAr:          "{{message}}",
		bodyEn:          "{{message}}",
	},
}

// applyVariables replaces {{key}} placeholders with their values
func applyVariables(template string, variables map[string]string) string {
	result := template
	for key, value := range variables {
		placeholder := fmt.Sprintf("{{%s}}", key)
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}
