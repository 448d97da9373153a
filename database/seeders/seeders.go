package seeders

import (
	"log"

	"github.com/eldertek/pg-pointage-sub001/database"
	"github.com/eldertek/pg-pointage-sub001/models"
	"github.com/eldertek/pg-pointage-sub001/utils"
)

// SeedAll runs all seeders
func SeedAll() {
	log.Println("Starting database seeding...")

	SeedOrganizations()
	SeedUsers()
	SeedSites()
	SeedSchedules()
	SeedAssignments()

	log.Println("Database seeding completed successfully!")
}

func uintPtr(v uint) *uint { return &v }

// SeedOrganizations seeds the organizations table
func SeedOrganizations() {
	var count int64
	database.DB.Model(&models.Organization{}).Count(&count)
	if count > 0 {
		log.Println("Organizations already seeded, skipping...")
		return
	}

	organizations := []models.Organization{
		{
			BaseModel: models.BaseModel{ID: 1},
			OrgID:     "PG",
			Name:      "Planète Gardiens",
			Address:   "12 rue de la République, 75011 Paris",
			Phone:     "0144556677",
			IsActive:  true,
		},
	}

	for _, org := range organizations {
		if err := database.DB.Create(&org).Error; err != nil {
			log.Printf("Error seeding organization %s: %v", org.OrgID, err)
		}
	}

	log.Println("Organizations seeded successfully")
}

// SeedUsers seeds the users table
func SeedUsers() {
	var count int64
	database.DB.Model(&models.User{}).Count(&count)
	if count > 0 {
		log.Println("Users already seeded, skipping...")
		return
	}

	// Hash the default password
	hashedPassword, _ := utils.HashPassword("password123")

	users := []models.User{
		{
			BaseModel:  models.BaseModel{ID: 1},
			Username:   "admin",
			Password:   hashedPassword,
			Email:      "admin@planete-gardiens.fr",
			FirstName:  "Admin",
			LastName:   "Système",
			Role:       models.RoleSuperAdmin,
			EmployeeID: "U00001",
			IsActive:   true,
		},
		{
			BaseModel:  models.BaseModel{ID: 2},
			Username:   "manager_paris",
			Password:   hashedPassword,
			Email:      "manager.paris@planete-gardiens.fr",
			FirstName:  "Claire",
			LastName:   "Dubois",
			Phone:      "0612345678",
			Role:       models.RoleManager,
			EmployeeID: "U00002",
			IsActive:   true,
		},
		{
			BaseModel:      models.BaseModel{ID: 3},
			Username:       "jmartin",
			Password:       hashedPassword,
			Email:          "j.martin@planete-gardiens.fr",
			FirstName:      "Jean",
			LastName:       "Martin",
			Phone:          "0623456789",
			Role:           models.RoleEmployee,
			EmployeeID:     "U00003",
			ScanPreference: models.ScanPreferenceBoth,
			IsActive:       true,
		},
		{
			BaseModel:      models.BaseModel{ID: 4},
			Username:       "sbernard",
			Password:       hashedPassword,
			Email:          "s.bernard@planete-gardiens.fr",
			FirstName:      "Sophie",
			LastName:       "Bernard",
			Phone:          "0634567890",
			Role:           models.RoleEmployee,
			EmployeeID:     "U00004",
			ScanPreference: models.ScanPreferenceQROnly,
			IsActive:       true,
		},
	}

	for _, user := range users {
		if err := database.DB.Create(&user).Error; err != nil {
			log.Printf("Error seeding user %s: %v", user.Username, err)
		}
	}

	log.Println("Users seeded successfully")
}

// SeedSites seeds the sites table
func SeedSites() {
	var count int64
	database.DB.Model(&models.Site{}).Count(&count)
	if count > 0 {
		log.Println("Sites already seeded, skipping...")
		return
	}

	sites := []models.Site{
		{
			BaseModel:            models.BaseModel{ID: 1},
			Name:                 "Résidence Les Lilas",
			Address:              "8 avenue des Lilas",
			PostalCode:           "75019",
			City:                 "Paris",
			OrganizationID:       1,
			ManagerID:            uintPtr(2),
			NfcID:                "PG-S0001",
			LateMargin:           15,
			EarlyDepartureMargin: 10,
			FrequencyTolerance:   10,
			AmbiguousMargin:      20,
			AlertEmails:          "alertes@planete-gardiens.fr",
			IsActive:             true,
		},
		{
			BaseModel:            models.BaseModel{ID: 2},
			Name:                 "Copropriété Bellevue",
			Address:              "3 rue Bellevue",
			PostalCode:           "92100",
			City:                 "Boulogne-Billancourt",
			OrganizationID:       1,
			ManagerID:            uintPtr(2),
			NfcID:                "PG-S0002",
			LateMargin:           10,
			EarlyDepartureMargin: 5,
			FrequencyTolerance:   15,
			AmbiguousMargin:      20,
			IsActive:             true,
		},
	}

	for _, site := range sites {
		if err := database.DB.Create(&site).Error; err != nil {
			log.Printf("Error seeding site %s: %v", site.NfcID, err)
		}
	}

	log.Println("Sites seeded successfully")
}

// SeedSchedules seeds schedules and their weekday details
func SeedSchedules() {
	var count int64
	database.DB.Model(&models.Schedule{}).Count(&count)
	if count > 0 {
		log.Println("Schedules already seeded, skipping...")
		return
	}

	schedules := []models.Schedule{
		{
			BaseModel:    models.BaseModel{ID: 1},
			SiteID:       1,
			ScheduleType: models.ScheduleTypeFixed,
			IsActive:     true,
		},
		{
			BaseModel:    models.BaseModel{ID: 2},
			SiteID:       2,
			ScheduleType: models.ScheduleTypeFrequency,
			IsActive:     true,
		},
	}

	for _, schedule := range schedules {
		if err := database.DB.Create(&schedule).Error; err != nil {
			log.Printf("Error seeding schedule %d: %v", schedule.ID, err)
		}
	}

	var details []models.ScheduleDetail
	// Fixed schedule: Monday to Friday, 08:00-12:00 / 14:00-17:00
	for day := 0; day < 5; day++ {
		details = append(details, models.ScheduleDetail{
			ScheduleID: 1,
			DayOfWeek:  day,
			DayType:    models.DayTypeFull,
			StartTime1: "08:00",
			EndTime1:   "12:00",
			StartTime2: "14:00",
			EndTime2:   "17:00",
		})
	}
	// Frequency schedule: Monday, Wednesday and Friday, 90 expected minutes
	for _, day := range []int{0, 2, 4} {
		details = append(details, models.ScheduleDetail{
			ScheduleID:        2,
			DayOfWeek:         day,
			FrequencyDuration: 90,
		})
	}

	for _, detail := range details {
		if err := database.DB.Create(&detail).Error; err != nil {
			log.Printf("Error seeding schedule detail (schedule %d, day %d): %v", detail.ScheduleID, detail.DayOfWeek, err)
		}
	}

	log.Println("Schedules seeded successfully")
}

// SeedAssignments links the seeded employees to their sites and schedules
func SeedAssignments() {
	var count int64
	database.DB.Model(&models.SiteEmployee{}).Count(&count)
	if count > 0 {
		log.Println("Assignments already seeded, skipping...")
		return
	}

	assignments := []models.SiteEmployee{
		{
			SiteID:     1,
			EmployeeID: 3,
			ScheduleID: uintPtr(1),
			IsActive:   true,
		},
		{
			SiteID:     2,
			EmployeeID: 4,
			ScheduleID: uintPtr(2),
			IsActive:   true,
		},
	}

	for _, assignment := range assignments {
		if err := database.DB.Create(&assignment).Error; err != nil {
			log.Printf("Error seeding assignment (site %d, employee %d): %v", assignment.SiteID, assignment.EmployeeID, err)
		}
	}

	log.Println("Assignments seeded successfully")
}
