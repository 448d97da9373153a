package models

import (
	"database/sql/driver"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	s, ok := value.([]byte)
	if !ok {
		return nil
	}
	*j = append((*j)[0:0], s...)
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// User roles
const (
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleOrgAdmin   = "ORG_ADMIN"
	RoleManager    = "MANAGER"
	RoleEmployee   = "EMPLOYEE"
)

// Scan preferences
const (
	ScanPreferenceBoth    = "BOTH"
	ScanPreferenceNFCOnly = "NFC_ONLY"
	ScanPreferenceQROnly  = "QR_ONLY"
)

// Organization groups sites and employees
type Organization struct {
	BaseModel
	OrgID    string `json:"org_id" gorm:"size:10;not null;uniqueIndex"`
	Name     string `json:"name" gorm:"size:100;not null"`
	Address  string `json:"address" gorm:"size:500"`
	Phone    string `json:"phone" gorm:"size:20"`
	IsActive bool   `json:"is_active" gorm:"default:true"`

	// Relationships
	Sites []Site `json:"sites,omitempty" gorm:"foreignKey:OrganizationID"`
	Users []User `json:"users,omitempty" gorm:"many2many:user_organizations;"`
}

// User model. Employees carry a sequential EmployeeID in the U00001..U99999 range.
type User struct {
	BaseModel
	Username          string     `json:"username" gorm:"size:100;not null;uniqueIndex"`
	Password          string     `json:"-" gorm:"size:255;not null"`
	Email             string     `json:"email" gorm:"size:255;uniqueIndex"`
	FirstName         string     `json:"first_name" gorm:"size:100"`
	LastName          string     `json:"last_name" gorm:"size:100"`
	Phone             string     `json:"phone" gorm:"size:20"`
	Role              string     `json:"role" gorm:"size:20;not null;default:'EMPLOYEE'"` // SUPER_ADMIN, ORG_ADMIN, MANAGER, EMPLOYEE
	EmployeeID        string     `json:"employee_id" gorm:"size:10;uniqueIndex"`
	ScanPreference    string     `json:"scan_preference" gorm:"size:20;default:'BOTH'"` // BOTH, NFC_ONLY, QR_ONLY
	PreferredLanguage string     `json:"preferred_language" gorm:"size:10;default:'fr'"`
	IsActive          bool       `json:"is_active" gorm:"default:true"`
	ActivationStart   *time.Time `json:"activation_start_date"`
	ActivationEnd     *time.Time `json:"activation_end_date"`

	// Relationships
	Organizations []Organization `json:"organizations,omitempty" gorm:"many2many:user_organizations;"`
}

func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Site is a work location employees scan in and out of. NfcID is the
// site-scan identifier in the ORG-S#### format shared by NFC tags and
// QR codes.
type Site struct {
	BaseModel
	Name           string `json:"name" gorm:"size:100;not null"`
	Address        string `json:"address" gorm:"size:500"`
	PostalCode     string `json:"postal_code" gorm:"size:5"`
	City           string `json:"city" gorm:"size:100"`
	Country        string `json:"country" gorm:"size:100;default:'France'"`
	OrganizationID uint   `json:"organization_id" gorm:"not null"`
	ManagerID      *uint  `json:"manager_id"`
	NfcID          string `json:"nfc_id" gorm:"size:10;not null;uniqueIndex"`

	// Margins in minutes, used when the schedule does not override them
	LateMargin           uint `json:"late_margin" gorm:"default:15"`
	EarlyDepartureMargin uint `json:"early_departure_margin" gorm:"default:10"`
	FrequencyTolerance   uint `json:"frequency_tolerance" gorm:"default:10"` // percent
	AmbiguousMargin      uint `json:"ambiguous_margin" gorm:"default:20"`
	RequireGeolocation   bool `json:"require_geolocation" gorm:"default:true"`
	GeolocationRadius    uint `json:"geolocation_radius" gorm:"default:100"`

	// Comma-separated alert recipients, on top of the site manager
	AlertEmails string `json:"alert_emails" gorm:"type:text"`

	IsActive        bool       `json:"is_active" gorm:"default:true"`
	ActivationStart *time.Time `json:"activation_start_date"`
	ActivationEnd   *time.Time `json:"activation_end_date"`

	// Relationships
	Organization Organization `json:"organization,omitempty" gorm:"foreignKey:OrganizationID"`
	Manager      *User        `json:"manager,omitempty" gorm:"foreignKey:ManagerID"`
	Schedules    []Schedule   `json:"schedules,omitempty" gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE"`
}

// AlertEmailList splits the comma-separated recipients, trimming whitespace
// and dropping empties. The site manager's email is appended when loaded.
func (s *Site) AlertEmailList() []string {
	seen := make(map[string]bool)
	var emails []string
	add := func(email string) {
		email = strings.TrimSpace(email)
		if email == "" || seen[email] {
			return
		}
		seen[email] = true
		emails = append(emails, email)
	}
	for _, email := range strings.Split(s.AlertEmails, ",") {
		add(email)
	}
	if s.Manager != nil {
		add(s.Manager.Email)
	}
	return emails
}

// Schedule types
const (
	ScheduleTypeFixed     = "FIXED"
	ScheduleTypeFrequency = "FREQUENCY"
)

// Schedule is a planning attached to a site. Margins override the site
// defaults when set; FrequencyTolerancePercentage is only meaningful for
// FREQUENCY schedules and overrides Site.FrequencyTolerance.
type Schedule struct {
	BaseModel
	SiteID       uint   `json:"site_id" gorm:"not null;index"`
	ScheduleType string `json:"schedule_type" gorm:"size:20;not null;default:'FIXED'"` // FIXED, FREQUENCY

	LateArrivalMargin            *uint `json:"late_arrival_margin"`
	EarlyDepartureMargin         *uint `json:"early_departure_margin"`
	FrequencyTolerancePercentage *uint `json:"frequency_tolerance_percentage"`

	IsActive        bool       `json:"is_active" gorm:"default:true"`
	ActivationStart *time.Time `json:"activation_start_date"`
	ActivationEnd   *time.Time `json:"activation_end_date"`

	// Relationships
	Site    Site             `json:"site,omitempty" gorm:"foreignKey:SiteID"`
	Details []ScheduleDetail `json:"details,omitempty" gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE"`
}

// Day types for fixed schedules
const (
	DayTypeFull = "FULL"
	DayTypeAM   = "AM"
	DayTypePM   = "PM"
)

// ScheduleDetail holds the planned times of one weekday. Fixed schedules
// use up to two windows (morning, afternoon) depending on DayType;
// frequency schedules only carry FrequencyDuration in minutes.
// DayOfWeek follows the 0=Monday..6=Sunday convention.
type ScheduleDetail struct {
	BaseModel
	ScheduleID uint   `json:"schedule_id" gorm:"not null;uniqueIndex:idx_schedule_day"`
	DayOfWeek  int    `json:"day_of_week" gorm:"not null;uniqueIndex:idx_schedule_day"`
	DayType    string `json:"day_type" gorm:"size:4;default:'FULL'"` // FULL, AM, PM

	StartTime1 string `json:"start_time_1" gorm:"size:5"` // HH:MM
	EndTime1   string `json:"end_time_1" gorm:"size:5"`
	StartTime2 string `json:"start_time_2" gorm:"size:5"`
	EndTime2   string `json:"end_time_2" gorm:"size:5"`

	FrequencyDuration uint `json:"frequency_duration"` // minutes, FREQUENCY only

	// Relationships
	Schedule Schedule `json:"schedule,omitempty" gorm:"foreignKey:ScheduleID"`
}

// SiteEmployee assigns an employee to a (site, schedule) pair. An employee
// may hold several concurrent assignments at the same site, which is what
// makes scan matching ambiguous.
type SiteEmployee struct {
	BaseModel
	SiteID     uint  `json:"site_id" gorm:"not null;index:idx_site_active"`
	EmployeeID uint  `json:"employee_id" gorm:"not null;index"`
	ScheduleID *uint `json:"schedule_id" gorm:"index:idx_schedule_active"`
	IsActive   bool  `json:"is_active" gorm:"default:true;index:idx_site_active;index:idx_schedule_active"`

	// Relationships
	Site     Site      `json:"site,omitempty" gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE"`
	Employee User      `json:"employee,omitempty" gorm:"belongsTo:User;foreignKey:EmployeeID;references:ID"`
	Schedule *Schedule `json:"schedule,omitempty" gorm:"foreignKey:ScheduleID"`
}

// Timesheet entry types
const (
	EntryTypeArrival   = "ARRIVAL"
	EntryTypeDeparture = "DEPARTURE"
)

// Scan types
const (
	ScanTypeNFC = "NFC"
	ScanTypeQR  = "QR_CODE"
)

// Timesheet is a single clock-in or clock-out scan. Scans are append-only;
// the classification flags are back-annotated by the schedule matcher and
// reset only by the repair sweep.
type Timesheet struct {
	BaseModel
	EmployeeID uint      `json:"employee_id" gorm:"not null;index:idx_employee_site_ts"`
	SiteID     uint      `json:"site_id" gorm:"not null;index:idx_employee_site_ts"`
	Timestamp  time.Time `json:"timestamp" gorm:"not null;index:idx_employee_site_ts"`
	EntryType  string    `json:"entry_type" gorm:"size:20;not null"` // ARRIVAL, DEPARTURE
	ScanType   string    `json:"scan_type" gorm:"size:10;not null;default:'QR_CODE'"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	// Flags computed by the schedule matcher
	IsLate                bool  `json:"is_late" gorm:"default:false"`
	LateMinutes           uint  `json:"late_minutes" gorm:"default:0"`
	IsEarlyDeparture      bool  `json:"is_early_departure" gorm:"default:false"`
	EarlyDepartureMinutes uint  `json:"early_departure_minutes" gorm:"default:0"`
	IsOutOfSchedule       bool  `json:"is_out_of_schedule" gorm:"default:false"`
	IsAmbiguous           bool  `json:"is_ambiguous" gorm:"default:false"`
	ScheduleID            *uint `json:"schedule_id"`

	CreatedOffline bool       `json:"created_offline" gorm:"default:false"`
	SyncedAt       *time.Time `json:"synced_at"`

	// Relationships
	Employee User      `json:"employee,omitempty" gorm:"belongsTo:User;foreignKey:EmployeeID;references:ID"`
	Site     Site      `json:"site,omitempty" gorm:"foreignKey:SiteID"`
	Schedule *Schedule `json:"schedule,omitempty" gorm:"foreignKey:ScheduleID"`
}

// Anomaly kinds
const (
	AnomalyTypeLate                = "LATE"
	AnomalyTypeEarlyDeparture      = "EARLY_DEPARTURE"
	AnomalyTypeMissingArrival      = "MISSING_ARRIVAL"
	AnomalyTypeMissingDeparture    = "MISSING_DEPARTURE"
	AnomalyTypeInsufficientHours   = "INSUFFICIENT_HOURS"
	AnomalyTypeConsecutiveSameType = "CONSECUTIVE_SAME_TYPE"
	AnomalyTypeUnlinkedSchedule    = "UNLINKED_SCHEDULE"
	AnomalyTypeOther               = "OTHER"
)

// Anomaly statuses
const (
	AnomalyStatusPending  = "PENDING"
	AnomalyStatusResolved = "RESOLVED"
	AnomalyStatusIgnored  = "IGNORED"
)

// Anomaly is one detected irregularity for an (employee, site, date).
// At most one non-ignored row may exist per (employee, site, date, kind,
// schedule); the reconciler upserts against that key. TimesheetID is the
// primary scan that raised the anomaly; RelatedTimesheets holds the full
// affected set.
type Anomaly struct {
	BaseModel
	EmployeeID  *uint     `json:"employee_id" gorm:"index:idx_anomaly_key"`
	SiteID      uint      `json:"site_id" gorm:"not null;index:idx_anomaly_key"`
	TimesheetID *uint     `json:"timesheet_id"`
	Date        time.Time `json:"date" gorm:"not null;index:idx_anomaly_key"`
	AnomalyType string    `json:"anomaly_type" gorm:"size:30;not null;index:idx_anomaly_key"`
	Description string    `json:"description" gorm:"type:text"`
	Status      string    `json:"status" gorm:"size:20;not null;default:'PENDING'"`
	Minutes     uint      `json:"minutes" gorm:"default:0"`
	ScheduleID  *uint     `json:"schedule_id" gorm:"index:idx_anomaly_key"`

	CorrectedByID  *uint      `json:"corrected_by_id"`
	CorrectionDate *time.Time `json:"correction_date"`
	CorrectionNote string     `json:"correction_note" gorm:"type:text"`

	// Relationships
	Employee          *User       `json:"employee,omitempty" gorm:"belongsTo:User;foreignKey:EmployeeID;references:ID;constraint:OnDelete:SET NULL"`
	Site              Site        `json:"site,omitempty" gorm:"foreignKey:SiteID"`
	Timesheet         *Timesheet  `json:"timesheet,omitempty" gorm:"foreignKey:TimesheetID"`
	Schedule          *Schedule   `json:"schedule,omitempty" gorm:"foreignKey:ScheduleID"`
	CorrectedBy       *User       `json:"corrected_by,omitempty" gorm:"foreignKey:CorrectedByID"`
	RelatedTimesheets []Timesheet `json:"related_timesheets,omitempty" gorm:"many2many:anomaly_related_timesheets;"`
}

// Alert statuses
const (
	AlertStatusPending  = "PENDING"
	AlertStatusSent     = "SENT"
	AlertStatusFailed   = "FAILED"
	AlertStatusResolved = "RESOLVED"
)

// Alert is the delivery record enqueued for an anomaly. The core only
// writes Pending rows; delivery is owned by the external mailer.
type Alert struct {
	BaseModel
	EmployeeID uint   `json:"employee_id" gorm:"not null"`
	SiteID     uint   `json:"site_id" gorm:"not null"`
	AnomalyID  *uint  `json:"anomaly_id"`
	AlertType  string `json:"alert_type" gorm:"size:30;not null"`
	Message    string `json:"message" gorm:"type:text;not null"`
	Recipients string `json:"recipients" gorm:"type:text"` // comma-separated emails
	Status     string `json:"status" gorm:"size:20;not null;default:'PENDING'"`

	SentAt       *time.Time `json:"sent_at"`
	ErrorMessage string     `json:"error_message" gorm:"type:text"`

	// Relationships
	Employee User     `json:"employee,omitempty" gorm:"belongsTo:User;foreignKey:EmployeeID;references:ID"`
	Site     Site     `json:"site,omitempty" gorm:"foreignKey:SiteID"`
	Anomaly  *Anomaly `json:"anomaly,omitempty" gorm:"foreignKey:AnomalyID;constraint:OnDelete:SET NULL"`
}

// RecipientList splits the stored recipients, trimming whitespace.
func (a *Alert) RecipientList() []string {
	var emails []string
	for _, email := range strings.Split(a.Recipients, ",") {
		email = strings.TrimSpace(email)
		if email != "" {
			emails = append(emails, email)
		}
	}
	return emails
}

// Log model for activity tracking
type ActivityLog struct {
	BaseModel
	UserID     uint   `json:"user_id"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// LogArchive tracks batches of activity logs moved to S3
type LogArchive struct {
	BaseModel
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	S3Key       string    `json:"s3_key" gorm:"size:500;not null"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	RecordCount int       `json:"record_count" gorm:"not null"`
	FileSize    int64     `json:"file_size" gorm:"not null"`
	Status      string    `json:"status" gorm:"size:50;not null;default:'pending'"` // pending, completed, failed
	Error       string    `json:"error" gorm:"type:text"`
}
