package memstore

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/timeslot"
)

// SeedDemo loads the same starter data as the MySQL seed migration: one
// superadmin (id 1) and three fields.
func SeedDemo(ctx context.Context, s *Store) error {
	email := "admin@example.com"
	admin := &model.User{FullName: "Site Administrator", Email: &email, Phone: "0900000001", Role: model.RoleSuperAdmin, IsActive: true}
	if err := s.CreateUser(ctx, admin); err != nil {
		return err
	}

	turf, grass := "Artificial turf, floodlit", "Natural grass"
	fields := []*model.Field{
		{Name: "Pitch A", FieldType: model.FieldType5v5, Location: "North stand", PricePerHour: decimal.NewFromInt(200000), Description: &turf, OpenTime: timeslot.At(6, 0), CloseTime: timeslot.At(23, 0)},
		{Name: "Pitch B", FieldType: model.FieldType7v7, Location: "North stand", PricePerHour: decimal.NewFromInt(350000), Description: &turf, OpenTime: timeslot.At(6, 0), CloseTime: timeslot.At(23, 0)},
		{Name: "Main Ground", FieldType: model.FieldType11v11, Location: "South stand", PricePerHour: decimal.NewFromInt(800000), Description: &grass, OpenTime: timeslot.At(7, 0), CloseTime: timeslot.At(21, 0)},
	}
	for _, f := range fields {
		f.IsActive = true
		if err := s.CreateField(ctx, f); err != nil {
			return err
		}
	}
	return nil
}
