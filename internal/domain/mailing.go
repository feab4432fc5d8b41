package domain

// One subscriber row in the shared mailing list file.
type MailingListEntry struct {
	Email     string  `json:"email"`
	IP        string  `json:"ip"`
	Timestamp float64 `json:"timestamp"`
}

// Header row of the mailing list file, in column order.
var MailingListHeader = []string{"email", "ip", "timestamp"}
