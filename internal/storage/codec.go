package storage

import "encoding/json"

func encodeRun(r RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func decodeRun(data []byte) (RunRecord, error) {
	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return RunRecord{}, err
	}
	return record, nil
}
