package order

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

const maxNumberAttempts = 5

// NewNumber builds a human-readable order number: "ORD", the creation time in
// base-36 milliseconds and four random digits. It is not collision-proof;
// uniqueness is enforced by the orders_order_number_key constraint.
func NewNumber(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return fmt.Sprintf("ORD%s%04d", ts, rand.Intn(10000))
}
