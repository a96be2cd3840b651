package entities

// RoleAdmin marks dashboard users whose instance is the admin instance.
const RoleAdmin = "admin"
