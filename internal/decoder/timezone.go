package decoder

import "time"

// bangkokLocation is loaded once; Asia/Bangkok is the only named zone the
// decoder ever applies to a local-time source string. Stored timestamps
// are always UTC.
var bangkokLocation = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Bangkok")
	if err != nil {
		return time.FixedZone("Asia/Bangkok", 7*60*60)
	}
	return loc
}()

// watchTimeLayout matches the Watch family's "timeStamps" field, e.g.
// "13/07/2025 08:50:59".
const watchTimeLayout = "02/01/2006 15:04:05"

// parseWatchLocalTime parses a Watch timestamp string in Asia/Bangkok local
// time and returns it converted to UTC.
func parseWatchLocalTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(watchTimeLayout, s, bangkokLocation)
	if err != nil {
		return time.Time{}, newDecodeError(ErrTypeMismatch, "unparseable local timestamp: "+s)
	}
	return t.UTC(), nil
}

// epochSecondsUTC converts a Unix epoch-seconds value to UTC.
func epochSecondsUTC(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
