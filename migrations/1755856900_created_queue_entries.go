package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"name": "queue_entries",
			"type": "base",
			"fields": [
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
					"name": "position",
					"type": "number",
					"onlyInt": true
				},
				{
					"name": "status",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": [
						"waiting",
						"reserved",
						"charging",
						"completed",
						"cancelled"
					]
				},
				{
					"name": "estimated_wait_minutes",
					"type": "number",
					"onlyInt": true
				},
				{
					"name": "reservation_expiry",
					"type": "date"
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
				"CREATE INDEX idx_queue_entries_station_status ON queue_entries (station, status)",
				"CREATE INDEX idx_queue_entries_station_user ON queue_entries (station, user)"
			]
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("queue_entries")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
