package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"name": "stations",
			"type": "base",
			"fields": [
				{
					"name": "name",
					"type": "text",
					"required": true
				},
				{
					"name": "address",
					"type": "text"
				},
				{
					"name": "is_active",
					"type": "bool"
				},
				{
					"name": "is_open",
					"type": "bool"
				},
				{
					"name": "max_queue_length",
					"type": "number",
					"onlyInt": true
				},
				{
					"name": "avg_charging_minutes",
					"type": "number",
					"onlyInt": true
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
			]
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("stations")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
