package insights

import (
	"bytes"
	"encoding/json"
	"text/template"
)

var promptTemplate = template.Must(template.New("insights").Funcs(template.FuncMap{
	"json": func(v any) (string, error) {
		if v == nil {
			return "{}", nil
		}
		raw, err := json.Marshal(v)
		return string(raw), err
	},
}).Parse(`Anda adalah seorang ahli produktivitas bernama "SmartRoutine AI". Analisis riwayat aktivitas pengguna berikut dalam bahasa Indonesia dan berikan analisis cerdas yang dibagi menjadi tiga bagian: konsistensi, fokus belajar, dan waktu istirahat.

Berikan judul dan deskripsi untuk setiap bagian. Analisis harus singkat, jelas, dan memberikan saran yang dapat ditindaklanjuti.

Riwayat Aktivitas Pengguna:
{{- range .History}}
- Aktivitas: {{.ActivityName}}, Tipe: {{.ActivityType}}, Durasi: {{.DurationMinutes}} menit, Detail: {{json .Details}}, Tanggal: {{.CreatedAt}}
{{- end}}
`))

// RenderPrompt renders the instruction text sent to the model.
func RenderPrompt(req Request) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, req); err != nil {
		return "", err
	}
	return buf.String(), nil
}
