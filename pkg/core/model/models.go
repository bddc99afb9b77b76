package model

// Candidate is one candidate row read from the recruitment spreadsheet
type Candidate struct {
	Row          int // 1-based spreadsheet row, used in import reports
	Name         string
	Surname      string
	Email        string
	Phone        string
	Age          string
	City         string
	ZipCode      string
	Experience   string
	Motivation   string
	Availability string
	Languages    []string
}

// AttendanceSheetRow is one line of a published attendance list
type AttendanceSheetRow struct {
	Date     string // Format: "2006-01-02"
	Time     string // "09:00 - 10:00"
	Name     string
	Email    string
	Phone    string
	Status   string // Asistió / No asistió / Sin marcar
	Approval string // user state
}
