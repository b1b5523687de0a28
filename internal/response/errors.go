package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Session tokens ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Tickets ───────────────────────────────────────────────────────
	ErrTicketNotFound    ErrCode = "TICKET_NOT_FOUND"
	ErrTicketUsed        ErrCode = "TICKET_ALREADY_USED"
	ErrTicketNotYetValid ErrCode = "TICKET_NOT_YET_VALID"
	ErrTicketExpired     ErrCode = "TICKET_EXPIRED"

	// ─── Exam content ──────────────────────────────────────────────────
	ErrConfigMissing    ErrCode = "EXAM_CONFIG_MISSING"
	ErrQuestionsMissing ErrCode = "QUESTION_SOURCE_MISSING"
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"

	// ─── Sessions ──────────────────────────────────────────────────────
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"
	ErrResultNotReady  ErrCode = "RESULT_NOT_READY"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Rate limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Session tokens ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token sesi diperlukan."
	case ErrTokenInvalid:
		return "Token sesi tidak valid."
	case ErrTokenExpired:
		return "Token sesi telah kedaluwarsa."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Tickets ───────────────────────────────────────────────────────
	case ErrTicketNotFound:
		return "Tiket tidak valid atau tidak ditemukan."
	case ErrTicketUsed:
		return "Tiket ini sudah digunakan!"
	case ErrTicketNotYetValid:
		return "Tiket belum dapat digunakan. Periksa jadwal ujian Anda."
	case ErrTicketExpired:
		return "Tiket sudah melewati masa berlakunya."

	// ─── Exam content ──────────────────────────────────────────────────
	case ErrConfigMissing:
		return "Konfigurasi ujian tidak ditemukan. Hubungi Guru."
	case ErrQuestionsMissing:
		return "Data soal tidak terhubung. Hubungi Guru."
	case ErrNoQuestions:
		return "Belum ada soal dalam paket ujian ini."

	// ─── Sessions ──────────────────────────────────────────────────────
	case ErrSessionNotFound:
		return "Sesi ujian tidak ditemukan atau sudah berakhir."
	case ErrResultNotReady:
		return "Ujian belum selesai. Hasil belum tersedia."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
