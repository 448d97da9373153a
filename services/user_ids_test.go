package services

import (
	"testing"

	"github.com/eldertek/pg-pointage-sub001/models"
)

func TestNextEmployeeID(t *testing.T) {
	db := setupTestDB(t)

	id, err := NextEmployeeID(db)
	if err != nil {
		t.Fatal(err)
	}
	if id != "U00001" {
		t.Fatalf("first id = %q, want U00001", id)
	}

	user := models.User{Username: "a", Password: "x", Email: "a@test.fr", EmployeeID: "U00042", IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
	id, err = NextEmployeeID(db)
	if err != nil {
		t.Fatal(err)
	}
	if id != "U00043" {
		t.Fatalf("next id = %q, want U00043", id)
	}
}

func TestNextEmployeeIDExhausted(t *testing.T) {
	db := setupTestDB(t)

	user := models.User{Username: "last", Password: "x", Email: "last@test.fr", EmployeeID: "U99999", IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := NextEmployeeID(db); KindOf(err) != ErrIdSpaceExhausted {
		t.Fatalf("expected ErrIdSpaceExhausted, got %v", err)
	}
}

func TestNextSiteNfcID(t *testing.T) {
	db := setupTestDB(t)

	org := models.Organization{OrgID: "TST", Name: "Test", IsActive: true}
	if err := db.Create(&org).Error; err != nil {
		t.Fatal(err)
	}
	other := models.Organization{OrgID: "ZZZ", Name: "Other", IsActive: true}
	if err := db.Create(&other).Error; err != nil {
		t.Fatal(err)
	}

	id, err := NextSiteNfcID(db, &org)
	if err != nil {
		t.Fatal(err)
	}
	if id != "TST-S0001" {
		t.Fatalf("first id = %q, want TST-S0001", id)
	}

	site := models.Site{Name: "A", OrganizationID: org.ID, NfcID: "TST-S0007", IsActive: true}
	if err := db.Create(&site).Error; err != nil {
		t.Fatal(err)
	}
	// Another organization's numbering must not interfere
	foreign := models.Site{Name: "B", OrganizationID: other.ID, NfcID: "ZZZ-S0099", IsActive: true}
	if err := db.Create(&foreign).Error; err != nil {
		t.Fatal(err)
	}

	id, err = NextSiteNfcID(db, &org)
	if err != nil {
		t.Fatal(err)
	}
	if id != "TST-S0008" {
		t.Fatalf("next id = %q, want TST-S0008", id)
	}
}

func TestNextSiteNfcIDExhausted(t *testing.T) {
	db := setupTestDB(t)

	org := models.Organization{OrgID: "TST", Name: "Test", IsActive: true}
	if err := db.Create(&org).Error; err != nil {
		t.Fatal(err)
	}
	site := models.Site{Name: "Last", OrganizationID: org.ID, NfcID: "TST-S9999", IsActive: true}
	if err := db.Create(&site).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := NextSiteNfcID(db, &org); KindOf(err) != ErrIdSpaceExhausted {
		t.Fatalf("expected ErrIdSpaceExhausted, got %v", err)
	}
}
