package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"name": "charging_sessions",
			"type": "base",
			"fields": [
				{
					"name": "queue_entry",
					"type": "text",
					"required": true
				},
				{
					"name": "user",
					"type": "text",
					"required": true
				},
				{
					"name": "station",
					"type": "text",
					"required": true
				},
				{
					"name": "started_at",
					"type": "date",
					"required": true
				},
				{
					"name": "ended_at",
					"type": "date"
				},
				{
					"name": "meter_start",
					"type": "text"
				},
				{
					"name": "meter_stop",
					"type": "text"
				},
				{
					"name": "created",
					"type": "autodate",
					"onCreate": true
				},
				{
					"name": "updated",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": true
				}
			],
			"indexes": [
				"CREATE INDEX idx_charging_sessions_station_user ON charging_sessions (station, user)"
			]
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("charging_sessions")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
