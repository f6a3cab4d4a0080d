package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-timetable/internal/models"
)

// RoomRepository reads the teaching rooms of each department.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// ListByDepartment returns the room names of a department in stable order.
func (r *RoomRepository) ListByDepartment(ctx context.Context, departmentID string) ([]string, error) {
	const query = `SELECT department_id, room_name FROM rooms WHERE department_id = $1 ORDER BY room_name ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, departmentID); err != nil {
		return nil, classify("list rooms", err)
	}
	names := make([]string, 0, len(rooms))
	for _, room := range rooms {
		names = append(names, room.RoomName)
	}
	return names, nil
}
