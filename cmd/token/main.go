// Command token mints an access token for local testing, e.g.
//
//	go run ./cmd/token -user 1 -role superadmin
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/iliyamo/field-booking/internal/config"
	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/utils"
)

func main() {
	userID := flag.Uint64("user", 0, "user id to put in the subject claim")
	role := flag.String("role", string(model.RoleCustomer), "superadmin|admin|customer")
	flag.Parse()

	r := model.Role(*role)
	if *userID == 0 || (r != model.RoleCustomer && !r.IsElevated()) {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	tok, err := utils.NewAccessToken(cfg.JWT.Secret, *userID, *role, cfg.JWT.AccessTTLMin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign:", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
